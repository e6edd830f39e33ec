package source

import (
	"context"
	"log/slog"
	"path/filepath"

	"patchbay/internal/entities/bundle"
	"patchbay/internal/release"
	"patchbay/internal/transport"
)

// Remote is a source backed by a remote JSON feed, or by a hosted
// repository's releases when its URL is a bare repository reference.
type Remote struct {
	record      bundle.Source
	dir         string
	client      *transport.Client
	resolver    *release.Resolver
	prereleases func() bool
}

func (r *Remote) Record() bundle.Source { return r.record }
func (r *Remote) Dir() string           { return r.dir }

func (r *Remote) resolve(ctx context.Context) (*bundle.CandidateRelease, error) {
	if release.IsRepoURL(r.record.URL) {
		ref, err := release.ParseRepoURL(r.record.URL)
		if err != nil {
			return nil, err
		}
		return r.resolver.ResolveRelease(ctx, ref.Owner, ref.Repo, r.prereleases(), release.IsBundleArchive)
	}
	return r.resolver.ResolveJSON(ctx, r.record.URL)
}

func (r *Remote) Refresh(ctx context.Context) (*bundle.UpdateOutcome, error) {
	candidate, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if candidate.Version == r.record.VersionHash {
		slog.Debug("Source unchanged", "logger", "source", "name", r.record.Name, "version", candidate.Version)
		return nil, nil
	}
	return fetchCandidate(ctx, r.client, r.resolver, r.dir, candidate)
}

func (r *Remote) DownloadLatest(ctx context.Context) (*bundle.UpdateOutcome, error) {
	candidate, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return fetchCandidate(ctx, r.client, r.resolver, r.dir, candidate)
}

func (r *Remote) Check(ctx context.Context) (*bundle.ManualUpdate, error) {
	candidate, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if candidate.Version == r.record.VersionHash {
		return nil, nil
	}
	return &bundle.ManualUpdate{LatestVersion: candidate.Version, PageURL: candidate.PageURL}, nil
}

// fetchCandidate downloads a candidate's artifact (and detached
// signature when one is published) into dir. The transport layer
// replaces files atomically, so readers never observe mixed content.
func fetchCandidate(ctx context.Context, client *transport.Client, resolver *release.Resolver, dir string, candidate *bundle.CandidateRelease) (*bundle.UpdateOutcome, error) {
	spec := transport.Spec{URL: candidate.DownloadURL, Header: resolver.Header()}
	if err := client.Download(ctx, filepath.Join(dir, ContentFileName), true, spec); err != nil {
		return nil, err
	}
	if candidate.SignatureURL != "" {
		sigSpec := transport.Spec{URL: candidate.SignatureURL, Header: resolver.Header()}
		if err := client.Download(ctx, filepath.Join(dir, SignatureFileName), false, sigSpec); err != nil {
			return nil, err
		}
	}
	outcome := &bundle.UpdateOutcome{VersionHash: candidate.Version}
	if !candidate.CreatedAt.IsZero() {
		outcome.AssetCreatedAt = candidate.CreatedAt.UnixMilli()
	}
	return outcome, nil
}
