package release

import (
	"context"
	"fmt"

	"patchbay/internal/entities/bundle"
	"patchbay/internal/transport"
)

// maxRunPages bounds workflow run pagination so an unmatched head
// commit terminates instead of walking the repository's whole history.
const maxRunPages = 10

// ResolvePullRequest resolves a pull request's latest CI artifact: the
// pull's head commit is matched against the repository's workflow runs
// page by page, and the first artifact of the matching run is exposed
// as the candidate release.
func (r *Resolver) ResolvePullRequest(ctx context.Context, owner, repo string, number int) (*bundle.CandidateRelease, error) {
	pullURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", r.api, owner, repo, number)
	pull, err := transport.JSON[ghPull](ctx, r.client, transport.Spec{URL: pullURL, Header: r.Header()})
	if err != nil {
		return nil, err
	}

	run, err := r.findRunForHead(ctx, owner, repo, pull.Head.SHA)
	if err != nil {
		return nil, err
	}

	artifactsURL := fmt.Sprintf("%s/repos/%s/%s/actions/runs/%d/artifacts", r.api, owner, repo, run.ID)
	artifacts, err := transport.JSON[ghArtifacts](ctx, r.client, transport.Spec{URL: artifactsURL, Header: r.Header()})
	if err != nil {
		return nil, err
	}
	if len(artifacts.Artifacts) == 0 {
		return nil, fmt.Errorf("%w: run %d", ErrNoArtifacts, run.ID)
	}
	artifact := artifacts.Artifacts[0]

	version := run.DisplayTitle
	if version == "" {
		version = run.HeadSHA
	}
	return &bundle.CandidateRelease{
		DownloadURL: artifact.ArchiveDownloadURL,
		Version:     version,
		CreatedAt:   artifact.CreatedAt,
		Description: pull.Title,
		PageURL:     pull.HTMLURL,
	}, nil
}

func (r *Resolver) findRunForHead(ctx context.Context, owner, repo, headSHA string) (*ghWorkflowRun, error) {
	for page := 1; page <= maxRunPages; page++ {
		url := fmt.Sprintf("%s/repos/%s/%s/actions/runs?per_page=%d&page=%d", r.api, owner, repo, perPage, page)
		runs, err := transport.JSON[ghWorkflowRuns](ctx, r.client, transport.Spec{URL: url, Header: r.Header()})
		if err != nil {
			return nil, err
		}
		for i := range runs.Runs {
			if runs.Runs[i].HeadSHA == headSHA {
				return &runs.Runs[i], nil
			}
		}
		if len(runs.Runs) < perPage {
			break
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoWorkflowRun, headSHA)
}
