// Package versions derives per-package version recommendations from the
// compatibility metadata of all loaded bundles. The computation is pure
// and recomputed on every state change, never stored.
package versions

import "patchbay/internal/entities/bundle"

// Recommendation is the suggested version for one target package. An
// empty Version means any version is supported.
type Recommendation struct {
	Version string
	// Count is the number of supporting compatibility entries.
	Count int
}

// packageTally accumulates per-version support counts while preserving
// the order versions first appear in the compatibility data. That order
// is load-bearing: count ties are broken in favor of later entries, so
// callers must supply compatibility data in a stable, meaningful order.
type packageTally struct {
	order  []string
	counts map[string]int
}

func (t *packageTally) bump(version string) {
	if _, seen := t.counts[version]; !seen {
		t.order = append(t.order, version)
	}
	t.counts[version]++
}

// Suggested computes the recommended version per target package across
// all loaded bundles. When countUnspecified is set, patches that target
// a package without pinning versions count toward the "any version"
// entry; otherwise they only register the package.
func Suggested(infos []*bundle.Info, countUnspecified bool) map[string]Recommendation {
	tallies := make(map[string]*packageTally)
	tallyFor := func(pkg string) *packageTally {
		t, ok := tallies[pkg]
		if !ok {
			t = &packageTally{counts: make(map[string]int)}
			tallies[pkg] = t
		}
		return t
	}

	for _, info := range infos {
		if info == nil {
			continue
		}
		for _, patch := range info.Patches {
			for _, compat := range patch.CompatiblePackages {
				t := tallyFor(compat.Name)
				if len(compat.Versions) == 0 {
					if countUnspecified {
						t.bump("")
					}
					continue
				}
				for _, version := range compat.Versions {
					t.bump(version)
				}
			}
		}
	}

	out := make(map[string]Recommendation, len(tallies))
	for pkg, t := range tallies {
		out[pkg] = pick(t)
	}
	return out
}

// pick selects the version with the highest support count; ties go to
// the later entry.
func pick(t *packageTally) Recommendation {
	best := Recommendation{}
	picked := false
	for _, version := range t.order {
		count := t.counts[version]
		if !picked || count >= best.Count {
			best = Recommendation{Version: version, Count: count}
			picked = true
		}
	}
	return best
}
