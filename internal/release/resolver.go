// Package release resolves a bundle source's latest upstream content
// into a normalized candidate release. Three strategies exist: a remote
// JSON document, a hosted repository's releases, and the CI artifact of
// a pull request.
package release

import (
	"errors"
	"net/http"
	"strings"

	"patchbay/internal/transport"
)

const (
	apiBase = "https://api.github.com"
	// perPage is the fixed page size for workflow run pagination.
	perPage = 30
)

var (
	ErrNoRelease     = errors.New("no matching release found")
	ErrNoWorkflowRun = errors.New("no workflow run found for pull request head")
	ErrNoArtifacts   = errors.New("workflow run has no artifacts")
)

// Resolver turns source descriptors into candidate releases.
type Resolver struct {
	client *transport.Client
	api    string
	// token returns the configured personal access token, blank when
	// none is set. A token raises API rate limits; absence is not an
	// error.
	token func() string
}

// NewResolver creates a Resolver on top of the shared transport client.
func NewResolver(client *transport.Client, token func() string) *Resolver {
	if token == nil {
		token = func() string { return "" }
	}
	return &Resolver{client: client, api: apiBase, token: token}
}

// Header returns the request headers for upstream API calls, with the
// bearer credential attached when a token is configured.
func (r *Resolver) Header() http.Header {
	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")
	if token := strings.TrimSpace(r.token()); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return header
}
