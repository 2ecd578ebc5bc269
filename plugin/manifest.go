package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/cardwise/cardflow/plugin/version"
)

// Metadata holds descriptive information about a plugin.
type Metadata struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	Version          string       `json:"version"`
	StandardsVersion string       `json:"standardsVersion"`
	Description      string       `json:"description,omitempty"`
	Author           string       `json:"author,omitempty"`
	Keywords         []string     `json:"keywords,omitempty"`
	Dependencies     []Dependency `json:"dependencies,omitempty"`
}

// Dependency declares a plugin the declaring plugin needs at enable time.
type Dependency struct {
	ID           string `json:"id"`
	VersionRange string `json:"version"`
	Optional     bool   `json:"optional,omitempty"`
}

// Manifest is the static, pre-activation description of a plugin used for
// batch resolution, distinct from a Registration which carries live hooks.
type Manifest struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Type         string       `json:"type"`
	Main         string       `json:"main"`
	Dependencies ManifestDeps `json:"dependencies"`
}

// ManifestDeps is the dependency envelope of the manifest wire format.
type ManifestDeps struct {
	Plugins []Dependency `json:"plugins,omitempty"`
}

// Manifest validation errors.
var (
	ErrManifestMissingID      = errors.New("manifest: id is required")
	ErrManifestInvalidID      = errors.New("manifest: id must be alphanumeric with hyphens")
	ErrManifestMissingVersion = errors.New("manifest: version is required")
	ErrManifestInvalidVersion = errors.New("manifest: version must be valid semver")
	ErrManifestInvalidDep     = errors.New("manifest: invalid dependency")
)

// idPattern validates plugin ids.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// ParseManifest parses and validates a manifest document.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks that the manifest is well formed.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return ErrManifestMissingID
	}
	if !idPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: %s", ErrManifestInvalidID, m.ID)
	}
	if m.Version == "" {
		return ErrManifestMissingVersion
	}
	if _, err := version.Parse(m.Version); err != nil {
		return fmt.Errorf("%w: %s", ErrManifestInvalidVersion, m.Version)
	}
	for i, dep := range m.Dependencies.Plugins {
		if dep.ID == "" {
			return fmt.Errorf("%w at index %d: id is required", ErrManifestInvalidDep, i)
		}
		if dep.VersionRange != "" {
			if _, err := version.ParseRange(dep.VersionRange); err != nil {
				return fmt.Errorf("%w at index %d: %w", ErrManifestInvalidDep, i, err)
			}
		}
	}
	return nil
}

// ManifestFromMetadata derives the resolver-facing manifest from live plugin
// metadata, so the batch resolver can run over already-registered plugins.
func ManifestFromMetadata(meta Metadata) *Manifest {
	return &Manifest{
		ID:           meta.ID,
		Name:         meta.Name,
		Version:      meta.Version,
		Dependencies: ManifestDeps{Plugins: append([]Dependency(nil), meta.Dependencies...)},
	}
}
