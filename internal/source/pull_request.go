package source

import (
	"context"

	"patchbay/internal/entities/bundle"
	"patchbay/internal/release"
	"patchbay/internal/transport"
)

// PullRequest is a source backed by the CI artifact of a code-review
// request. The downloaded artifact is a zip archive; manifest parsing
// unwraps it.
type PullRequest struct {
	record   bundle.Source
	dir      string
	client   *transport.Client
	resolver *release.Resolver
	ref      release.RepoRef
}

func (p *PullRequest) Record() bundle.Source { return p.record }
func (p *PullRequest) Dir() string           { return p.dir }

func (p *PullRequest) resolve(ctx context.Context) (*bundle.CandidateRelease, error) {
	return p.resolver.ResolvePullRequest(ctx, p.ref.Owner, p.ref.Repo, p.ref.PullNumber)
}

func (p *PullRequest) Refresh(ctx context.Context) (*bundle.UpdateOutcome, error) {
	candidate, err := p.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if candidate.Version == p.record.VersionHash {
		return nil, nil
	}
	return fetchCandidate(ctx, p.client, p.resolver, p.dir, candidate)
}

func (p *PullRequest) DownloadLatest(ctx context.Context) (*bundle.UpdateOutcome, error) {
	candidate, err := p.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return fetchCandidate(ctx, p.client, p.resolver, p.dir, candidate)
}

func (p *PullRequest) Check(ctx context.Context) (*bundle.ManualUpdate, error) {
	candidate, err := p.resolve(ctx)
	if err != nil {
		return nil, err
	}
	if candidate.Version == p.record.VersionHash {
		return nil, nil
	}
	return &bundle.ManualUpdate{LatestVersion: candidate.Version, PageURL: candidate.PageURL}, nil
}
