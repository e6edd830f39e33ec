package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"patchbay/internal/transport"

	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, handler http.Handler, token string) (*Resolver, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	r := NewResolver(transport.New(server.Client()), func() string { return token })
	r.api = server.URL
	return r, server
}

func TestResolveJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.json", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"created_at":             "2024-01-02T03:04:05Z",
			"description":            "nightly build",
			"download_url":           "https://cdn.example.com/bundle.json",
			"signature_download_url": "https://cdn.example.com/bundle.json.sig",
			"version":                "v2.1.0",
		})
	})
	r, server := newTestResolver(t, mux, "")

	candidate, err := r.ResolveJSON(context.Background(), server.URL+"/feed.json")
	require.NoError(t, err)
	require.Equal(t, "v2.1.0", candidate.Version)
	require.Equal(t, "https://cdn.example.com/bundle.json", candidate.DownloadURL)
	require.Equal(t, "https://cdn.example.com/bundle.json.sig", candidate.SignatureURL)
	require.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), candidate.CreatedAt)
	require.Equal(t, "nightly build", candidate.Description)
}

func TestParseFeedTimestamp(t *testing.T) {
	at, err := parseFeedTimestamp("2024-01-02T03:04:05Z")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), at)

	at, err = parseFeedTimestamp("2024-01-02 03:04:05")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), at)

	_, err = parseFeedTimestamp("not-a-date")
	require.Error(t, err)
}

func TestResolveJSONUnparseableTimestampFailsResolution(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.json", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"created_at":   "not-a-date",
			"download_url": "https://cdn.example.com/bundle.json",
			"version":      "v1",
		})
	})
	r, server := newTestResolver(t, mux, "")

	_, err := r.ResolveJSON(context.Background(), server.URL+"/feed.json")
	require.ErrorContains(t, err, "unparseable feed timestamp")
}

func TestPageURLFromFeed(t *testing.T) {
	require.Equal(t,
		"https://github.com/acme/bundles",
		pageURLFromFeed("https://raw.githubusercontent.com/acme/bundles/main/feed.json"))
	require.Equal(t,
		"https://forge.example.com/acme/bundles",
		pageURLFromFeed("https://forge.example.com/acme/bundles/raw/branch/main/feed.json"))
	require.Equal(t, DefaultRepoURL, pageURLFromFeed("https://cdn.example.com/feeds/patches.json"))
}

func TestResolveReleaseSkipsDraftsAndPrereleases(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/bundles/releases", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]map[string]any{
			{"tag_name": "v3.0.0-draft", "draft": true, "assets": []map[string]any{
				{"name": "bundle.json", "browser_download_url": "https://x/draft"},
			}},
			{"tag_name": "v3.0.0-rc1", "prerelease": true, "assets": []map[string]any{
				{"name": "bundle.json", "browser_download_url": "https://x/rc"},
			}},
			{"tag_name": "v2.9.0", "html_url": "https://github.com/acme/bundles/releases/v2.9.0", "assets": []map[string]any{
				{"name": "checksums.txt", "browser_download_url": "https://x/sums"},
				{"name": "bundle.json", "browser_download_url": "https://x/bundle", "created_at": "2024-03-01T00:00:00Z"},
				{"name": "bundle.json.asc", "browser_download_url": "https://x/bundle.asc"},
			}},
		})
	})
	r, _ := newTestResolver(t, mux, "tok123")

	candidate, err := r.ResolveRelease(context.Background(), "acme", "bundles", false, IsBundleArchive)
	require.NoError(t, err)
	require.Equal(t, "v2.9.0", candidate.Version)
	require.Equal(t, "https://x/bundle", candidate.DownloadURL)
	require.Equal(t, "https://x/bundle.asc", candidate.SignatureURL)
	require.Equal(t, "https://github.com/acme/bundles/releases/v2.9.0", candidate.PageURL)
}

func TestResolveReleaseIncludesPrereleaseWhenAllowed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/bundles/releases", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"tag_name": "v3.0.0-rc1", "prerelease": true, "assets": []map[string]any{
				{"name": "bundle.json", "browser_download_url": "https://x/rc"},
			}},
		})
	})
	r, _ := newTestResolver(t, mux, "")

	candidate, err := r.ResolveRelease(context.Background(), "acme", "bundles", true, IsBundleArchive)
	require.NoError(t, err)
	require.Equal(t, "v3.0.0-rc1", candidate.Version)
}

func TestResolveReleaseNoMatchIsTerminal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/bundles/releases", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"tag_name": "v1.0.0", "assets": []map[string]any{
				{"name": "readme.md", "browser_download_url": "https://x/readme"},
			}},
		})
	})
	r, _ := newTestResolver(t, mux, "")

	_, err := r.ResolveRelease(context.Background(), "acme", "bundles", false, IsBundleArchive)
	require.ErrorIs(t, err, ErrNoRelease)
}

func TestSignatureURLStrippedExtension(t *testing.T) {
	assets := []ghAsset{
		{Name: "bundle.json", BrowserDownloadURL: "https://x/bundle"},
		{Name: "bundle.sig", BrowserDownloadURL: "https://x/bundle.sig"},
	}
	require.Equal(t, "https://x/bundle.sig", signatureURL(assets, assets[0]))
}

func TestResolvePullRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/bundles/pulls/42", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"number":   42,
			"title":    "Add new patches",
			"html_url": "https://github.com/acme/bundles/pull/42",
			"head":     map[string]string{"sha": "feedface"},
		})
	})
	mux.HandleFunc("/repos/acme/bundles/actions/runs", func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "1" {
			// full first page without the head commit forces pagination
			runs := make([]map[string]any, perPage)
			for i := range runs {
				runs[i] = map[string]any{"id": 1000 + i, "head_sha": fmt.Sprintf("other%d", i)}
			}
			json.NewEncoder(w).Encode(map[string]any{"workflow_runs": runs})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"workflow_runs": []map[string]any{
			{"id": 777, "head_sha": "feedface", "display_title": "ci: build bundle", "html_url": "https://x/run/777"},
		}})
	})
	mux.HandleFunc("/repos/acme/bundles/actions/runs/777/artifacts", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"artifacts": []map[string]any{
			{"id": 9, "name": "bundle", "archive_download_url": "https://x/artifact/9", "created_at": "2024-05-01T10:00:00Z"},
		}})
	})
	r, _ := newTestResolver(t, mux, "")

	candidate, err := r.ResolvePullRequest(context.Background(), "acme", "bundles", 42)
	require.NoError(t, err)
	require.Equal(t, "https://x/artifact/9", candidate.DownloadURL)
	require.Equal(t, "ci: build bundle", candidate.Version)
	require.Equal(t, "https://github.com/acme/bundles/pull/42", candidate.PageURL)
}

func TestResolvePullRequestNoArtifacts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/bundles/pulls/7", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"head": map[string]string{"sha": "cafe"}})
	})
	mux.HandleFunc("/repos/acme/bundles/actions/runs", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"workflow_runs": []map[string]any{
			{"id": 5, "head_sha": "cafe"},
		}})
	})
	mux.HandleFunc("/repos/acme/bundles/actions/runs/5/artifacts", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"artifacts": []map[string]any{}})
	})
	r, _ := newTestResolver(t, mux, "")

	_, err := r.ResolvePullRequest(context.Background(), "acme", "bundles", 7)
	require.ErrorIs(t, err, ErrNoArtifacts)
}

func TestResolvePullRequestRunListExhausted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/bundles/pulls/8", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"head": map[string]string{"sha": "deadbeef"}})
	})
	mux.HandleFunc("/repos/acme/bundles/actions/runs", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"workflow_runs": []map[string]any{
			{"id": 1, "head_sha": "unrelated"},
		}})
	})
	r, _ := newTestResolver(t, mux, "")

	_, err := r.ResolvePullRequest(context.Background(), "acme", "bundles", 8)
	require.ErrorIs(t, err, ErrNoWorkflowRun)
}

func TestParsePullURL(t *testing.T) {
	ref, err := ParsePullURL("https://github.com/acme/bundles/pull/42")
	require.NoError(t, err)
	require.Equal(t, RepoRef{Owner: "acme", Repo: "bundles", PullNumber: 42}, ref)

	_, err = ParsePullURL("https://github.com/acme/bundles")
	require.ErrorIs(t, err, ErrUnsupportedURL)

	_, err = ParsePullURL("https://github.com/acme/bundles/pull/abc")
	require.ErrorIs(t, err, ErrUnsupportedURL)
}

func TestParseRepoURL(t *testing.T) {
	ref, err := ParseRepoURL("https://github.com/acme/bundles")
	require.NoError(t, err)
	require.Equal(t, RepoRef{Owner: "acme", Repo: "bundles"}, ref)

	require.True(t, IsRepoURL("https://github.com/acme/bundles"))
	require.False(t, IsRepoURL("https://cdn.example.com/feeds/patches.json"))
}
