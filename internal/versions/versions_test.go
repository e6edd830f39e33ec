package versions

import (
	"testing"

	"patchbay/internal/entities/bundle"

	"github.com/stretchr/testify/require"
)

func compat(pkg string, versions ...string) bundle.PackageCompat {
	return bundle.PackageCompat{Name: pkg, Versions: versions}
}

func infoWith(patches ...bundle.Patch) *bundle.Info {
	return &bundle.Info{Name: "test", Patches: patches}
}

func TestSuggestedSingleVersion(t *testing.T) {
	infos := []*bundle.Info{infoWith(
		bundle.Patch{Name: "a", CompatiblePackages: []bundle.PackageCompat{compat("com.app", "1.0.0")}},
		bundle.Patch{Name: "b", CompatiblePackages: []bundle.PackageCompat{compat("com.app", "1.0.0")}},
	)}
	out := Suggested(infos, false)
	require.Equal(t, Recommendation{Version: "1.0.0", Count: 2}, out["com.app"])
}

func TestSuggestedAnyVersion(t *testing.T) {
	infos := []*bundle.Info{infoWith(
		bundle.Patch{Name: "a", CompatiblePackages: []bundle.PackageCompat{compat("com.app")}},
	)}
	out := Suggested(infos, false)
	require.Contains(t, out, "com.app")
	require.Equal(t, Recommendation{}, out["com.app"])
}

func TestSuggestedHighestCountWins(t *testing.T) {
	infos := []*bundle.Info{infoWith(
		bundle.Patch{Name: "a", CompatiblePackages: []bundle.PackageCompat{compat("com.app", "1.0", "2.0")}},
		bundle.Patch{Name: "b", CompatiblePackages: []bundle.PackageCompat{compat("com.app", "2.0")}},
	)}
	out := Suggested(infos, false)
	require.Equal(t, "2.0", out["com.app"].Version)
	require.Equal(t, 2, out["com.app"].Count)
}

func TestSuggestedCountTieLaterEntryWins(t *testing.T) {
	// v1:5, v2:5, v3:3 in listed order -> v2 takes the count tie
	patches := make([]bundle.Patch, 0, 5)
	for i := 0; i < 5; i++ {
		patches = append(patches, bundle.Patch{
			Name:               "p",
			CompatiblePackages: []bundle.PackageCompat{compat("com.app", "v1", "v2")},
		})
	}
	for i := 0; i < 3; i++ {
		patches = append(patches, bundle.Patch{
			Name:               "q",
			CompatiblePackages: []bundle.PackageCompat{compat("com.app", "v3")},
		})
	}
	out := Suggested([]*bundle.Info{infoWith(patches...)}, false)
	require.Equal(t, Recommendation{Version: "v2", Count: 5}, out["com.app"])
}

func TestSuggestedCountUnspecified(t *testing.T) {
	infos := []*bundle.Info{infoWith(
		bundle.Patch{Name: "a", CompatiblePackages: []bundle.PackageCompat{compat("com.app", "1.0")}},
		bundle.Patch{Name: "b", CompatiblePackages: []bundle.PackageCompat{compat("com.app")}},
		bundle.Patch{Name: "c", CompatiblePackages: []bundle.PackageCompat{compat("com.app")}},
	)}

	// unspecified entries excluded: the pinned version wins
	out := Suggested(infos, false)
	require.Equal(t, "1.0", out["com.app"].Version)

	// counted, the "any version" entry outweighs the pinned one
	out = Suggested(infos, true)
	require.Equal(t, Recommendation{Version: "", Count: 2}, out["com.app"])
}

func TestSuggestedAcrossBundles(t *testing.T) {
	infos := []*bundle.Info{
		infoWith(bundle.Patch{Name: "a", CompatiblePackages: []bundle.PackageCompat{compat("com.app", "1.0")}}),
		infoWith(bundle.Patch{Name: "b", CompatiblePackages: []bundle.PackageCompat{compat("com.app", "2.0"), compat("com.other", "9.9")}}),
		nil,
	}
	out := Suggested(infos, false)
	require.Len(t, out, 2)
	// equal counts, later entry wins
	require.Equal(t, "2.0", out["com.app"].Version)
	require.Equal(t, "9.9", out["com.other"].Version)
}
