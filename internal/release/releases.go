package release

import (
	"context"
	"fmt"
	"path"
	"strings"

	"patchbay/internal/entities/bundle"
	"patchbay/internal/transport"
)

// AssetPredicate selects the release asset to download by file name.
type AssetPredicate func(name string) bool

// IsBundleArchive matches assets that carry a patch bundle.
func IsBundleArchive(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".zip", ".pbb":
		return true
	}
	return false
}

// IsInstallablePackage matches assets that carry an installable package,
// used by self-update flows rather than bundle sources.
func IsInstallablePackage(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".apk")
}

// ResolveRelease lists a repository's releases and returns the most
// recent one that is not a draft, matches the prerelease-inclusion
// flag, and carries an asset satisfying match. No matching release is a
// terminal error, never an empty result.
func (r *Resolver) ResolveRelease(ctx context.Context, owner, repo string, prereleases bool, match AssetPredicate) (*bundle.CandidateRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", r.api, owner, repo, perPage)
	releases, err := transport.JSON[[]ghRelease](ctx, r.client, transport.Spec{URL: url, Header: r.Header()})
	if err != nil {
		return nil, err
	}

	for _, rel := range releases {
		if rel.Draft || (rel.Prerelease && !prereleases) {
			continue
		}
		asset, ok := pickAsset(rel.Assets, match)
		if !ok {
			continue
		}
		return &bundle.CandidateRelease{
			DownloadURL:  asset.BrowserDownloadURL,
			SignatureURL: signatureURL(rel.Assets, asset),
			Version:      rel.TagName,
			CreatedAt:    asset.CreatedAt,
			Description:  rel.Body,
			PageURL:      rel.HTMLURL,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNoRelease, owner, repo)
}

func pickAsset(assets []ghAsset, match AssetPredicate) (ghAsset, bool) {
	for _, asset := range assets {
		if isSignatureName(asset.Name) {
			continue
		}
		if match(asset.Name) {
			return asset, true
		}
	}
	return ghAsset{}, false
}

func isSignatureName(name string) bool {
	return strings.HasSuffix(name, ".sig") || strings.HasSuffix(name, ".asc")
}

// signatureURL locates the detached signature for asset by exact-name
// convention: <asset>.sig, <asset>.asc, or the same against the asset
// name with its extension stripped.
func signatureURL(assets []ghAsset, asset ghAsset) string {
	stem := strings.TrimSuffix(asset.Name, path.Ext(asset.Name))
	candidates := []string{
		asset.Name + ".sig",
		asset.Name + ".asc",
		stem + ".sig",
		stem + ".asc",
	}
	for _, want := range candidates {
		for _, other := range assets {
			if other.Name == want {
				return other.BrowserDownloadURL
			}
		}
	}
	return ""
}
