package resolver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cardwise/cardflow/plugin"
)

// --- helpers ---

func manifest(id, version string, deps ...plugin.Dependency) *plugin.Manifest {
	return &plugin.Manifest{
		ID:           id,
		Name:         id,
		Version:      version,
		Dependencies: plugin.ManifestDeps{Plugins: deps},
	}
}

func dep(id string) plugin.Dependency {
	return plugin.Dependency{ID: id}
}

func manifestSet(ms ...*plugin.Manifest) map[string]*plugin.Manifest {
	out := make(map[string]*plugin.Manifest, len(ms))
	for _, m := range ms {
		out[m.ID] = m
	}
	return out
}

func indexOf(t *testing.T, order []string, id string) int {
	t.Helper()
	for i, v := range order {
		if v == id {
			return i
		}
	}
	t.Fatalf("id %q not in load order %v", id, order)
	return -1
}

// --- Resolve ---

func TestResolve_EmptyInput(t *testing.T) {
	res := Resolve(map[string]*plugin.Manifest{})
	assert.Empty(t, res.LoadOrder)
	assert.False(t, res.HasCycles)
	assert.Empty(t, res.Cycles)
	assert.Empty(t, res.Missing)
}

func TestResolve_LinearChain(t *testing.T) {
	res := Resolve(manifestSet(
		manifest("c", "1.0.0", dep("b")),
		manifest("b", "1.0.0", dep("a")),
		manifest("a", "1.0.0"),
	))

	require.False(t, res.HasCycles)
	assert.Equal(t, []string{"a", "b", "c"}, res.LoadOrder)
	assert.Empty(t, res.Missing)
}

func TestResolve_DiamondDependency(t *testing.T) {
	res := Resolve(manifestSet(
		manifest("app", "1.0.0", dep("left"), dep("right")),
		manifest("left", "1.0.0", dep("base")),
		manifest("right", "1.0.0", dep("base")),
		manifest("base", "1.0.0"),
	))

	require.False(t, res.HasCycles)
	require.Len(t, res.LoadOrder, 4)
	base := indexOf(t, res.LoadOrder, "base")
	assert.Less(t, base, indexOf(t, res.LoadOrder, "left"))
	assert.Less(t, base, indexOf(t, res.LoadOrder, "right"))
	assert.Equal(t, "app", res.LoadOrder[3])
}

func TestResolve_MissingDependency(t *testing.T) {
	res := Resolve(manifestSet(
		manifest("a", "1.0.0", dep("ghost")),
		manifest("b", "1.0.0", dep("a"), dep("phantom")),
	))

	assert.Equal(t, []string{"ghost", "phantom"}, res.Missing)
	// Edges to absent ids are excluded from ordering.
	assert.Equal(t, []string{"a", "b"}, res.LoadOrder)
	assert.False(t, res.HasCycles)
}

func TestResolve_SimpleCycle(t *testing.T) {
	res := Resolve(manifestSet(
		manifest("a", "1.0.0", dep("b")),
		manifest("b", "1.0.0", dep("a")),
	))

	require.True(t, res.HasCycles)
	require.NotEmpty(t, res.Cycles)
	assert.ElementsMatch(t, []string{"a", "b"}, res.Cycles[0])
	assert.Empty(t, res.LoadOrder)
}

func TestResolve_SelfCycle(t *testing.T) {
	res := Resolve(manifestSet(
		manifest("narcissus", "1.0.0", dep("narcissus")),
	))

	require.True(t, res.HasCycles)
	require.Len(t, res.Cycles, 1)
	assert.Equal(t, []string{"narcissus"}, res.Cycles[0])
}

func TestResolve_TwoIndependentCycles(t *testing.T) {
	res := Resolve(manifestSet(
		manifest("a", "1.0.0", dep("b")),
		manifest("b", "1.0.0", dep("a")),
		manifest("x", "1.0.0", dep("y")),
		manifest("y", "1.0.0", dep("x")),
		manifest("free", "1.0.0"),
	))

	require.True(t, res.HasCycles)
	assert.Len(t, res.Cycles, 2)
	// The acyclic portion still gets an order.
	assert.Equal(t, []string{"free"}, res.LoadOrder)
}

func TestResolve_CycleWithDownstreamDependent(t *testing.T) {
	res := Resolve(manifestSet(
		manifest("a", "1.0.0", dep("b")),
		manifest("b", "1.0.0", dep("a")),
		manifest("c", "1.0.0", dep("a")), // behind the cycle, unorderable
		manifest("d", "1.0.0"),
	))

	require.True(t, res.HasCycles)
	assert.Equal(t, []string{"d"}, res.LoadOrder)
}

func TestResolve_DeterministicOrder(t *testing.T) {
	set := manifestSet(
		manifest("z", "1.0.0"),
		manifest("m", "1.0.0"),
		manifest("a", "1.0.0"),
	)
	first := Resolve(set)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first.LoadOrder, Resolve(set).LoadOrder)
	}
	assert.Equal(t, []string{"a", "m", "z"}, first.LoadOrder)
}

// --- CheckDependencies ---

func TestCheckDependencies(t *testing.T) {
	available := manifestSet(
		manifest("core", "1.5.0"),
		manifest("extra", "2.0.0"),
	)

	tests := []struct {
		name string
		deps []plugin.Dependency
		want bool
	}{
		{name: "no dependencies", deps: nil, want: true},
		{
			name: "present and compatible",
			deps: []plugin.Dependency{{ID: "core", VersionRange: "^1.2.0"}},
			want: true,
		},
		{
			name: "present without range",
			deps: []plugin.Dependency{{ID: "core"}},
			want: true,
		},
		{
			name: "absent required",
			deps: []plugin.Dependency{{ID: "ghost"}},
			want: false,
		},
		{
			name: "absent optional",
			deps: []plugin.Dependency{{ID: "ghost", Optional: true}},
			want: true,
		},
		{
			name: "version incompatible",
			deps: []plugin.Dependency{{ID: "extra", VersionRange: "^1.0.0"}},
			want: false,
		},
		{
			name: "malformed range satisfies nothing",
			deps: []plugin.Dependency{{ID: "core", VersionRange: "latest"}},
			want: false,
		},
		{
			name: "bounds range",
			deps: []plugin.Dependency{{ID: "core", VersionRange: "1.0.0-2.0.0"}},
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckDependencies(tt.deps, available))
		})
	}
}

// --- properties ---

// genAcyclicSet generates a manifest set whose dependencies only point at
// lexicographically smaller ids, which cannot contain a cycle.
func genAcyclicSet(rt *rapid.T) map[string]*plugin.Manifest {
	n := rapid.IntRange(1, 12).Draw(rt, "n")
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%02d", i)
	}

	set := make(map[string]*plugin.Manifest, n)
	for i, id := range ids {
		var deps []plugin.Dependency
		if i > 0 {
			count := rapid.IntRange(0, i).Draw(rt, "deps_"+id)
			for _, j := range rapid.SliceOfNDistinct(rapid.IntRange(0, i-1), count, count, rapid.ID[int]).Draw(rt, "targets_"+id) {
				deps = append(deps, plugin.Dependency{ID: ids[j]})
			}
		}
		set[id] = manifest(id, "1.0.0", deps...)
	}
	return set
}

func TestProperty_AcyclicLoadOrderRespectsDependencies(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		set := genAcyclicSet(rt)
		res := Resolve(set)

		if res.HasCycles {
			rt.Fatalf("acyclic input reported cycles: %v", res.Cycles)
		}
		if len(res.LoadOrder) != len(set) {
			rt.Fatalf("load order %v does not cover all %d manifests", res.LoadOrder, len(set))
		}

		position := make(map[string]int, len(res.LoadOrder))
		for i, id := range res.LoadOrder {
			position[id] = i
		}
		for id, m := range set {
			for _, d := range m.Dependencies.Plugins {
				if position[d.ID] >= position[id] {
					rt.Fatalf("dependency %s not before dependent %s in %v", d.ID, id, res.LoadOrder)
				}
			}
		}
	})
}

func TestProperty_CycleAlwaysReported(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		set := genAcyclicSet(rt)

		// Close a loop over a random subset of ids.
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		size := rapid.IntRange(1, len(ids)).Draw(rt, "cycleSize")
		members := rapid.SliceOfNDistinct(rapid.SampledFrom(ids), size, size, rapid.ID[string]).Draw(rt, "members")
		for i, id := range members {
			next := members[(i+1)%len(members)]
			set[id].Dependencies.Plugins = append(set[id].Dependencies.Plugins, plugin.Dependency{ID: next})
		}

		res := Resolve(set)
		if !res.HasCycles {
			rt.Fatalf("cycle through %v not detected", members)
		}
		if len(res.Cycles) == 0 || len(res.Cycles[0]) == 0 {
			rt.Fatalf("HasCycles set but no cycle reported")
		}
	})
}

func TestProperty_MissingDependenciesCollected(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		set := genAcyclicSet(rt)
		ghost := rapid.StringMatching(`ghost-[a-z]{4}`).Draw(rt, "ghost")
		for id := range set {
			set[id].Dependencies.Plugins = append(set[id].Dependencies.Plugins,
				plugin.Dependency{ID: ghost})
			break
		}

		res := Resolve(set)
		if !contains(res.Missing, ghost) {
			rt.Fatalf("missing id %q not reported in %v", ghost, res.Missing)
		}
	})
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
