package source

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"patchbay/internal/entities/bundle"
	"patchbay/internal/release"
	"patchbay/internal/transport"

	"github.com/stretchr/testify/require"
)

func newRemoteFixture(t *testing.T, versionHash string) (*Remote, *httptest.Server, *int) {
	t.Helper()
	downloads := 0
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/feed.json", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"created_at":   "2024-01-02T03:04:05Z",
			"description":  "latest",
			"download_url": server.URL + "/bundle.json",
			"version":      "v2.0.0",
		})
	})
	mux.HandleFunc("/bundle.json", func(w http.ResponseWriter, _ *http.Request) {
		downloads++
		w.Write([]byte(`{"name":"test patches","patches":[]}`))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := transport.New(server.Client())
	resolver := release.NewResolver(client, nil)
	factory := NewFactory(client, resolver, t.TempDir(), nil)

	record := bundle.Source{
		UID:         7,
		Name:        "test",
		Kind:        bundle.KindRemote,
		URL:         server.URL + "/feed.json",
		VersionHash: versionHash,
	}
	variant, err := factory.Materialize(record)
	require.NoError(t, err)
	return variant.(*Remote), server, &downloads
}

func TestRemoteRefreshDownloadsNewVersion(t *testing.T) {
	remote, _, downloads := newRemoteFixture(t, "v1.0.0")

	outcome, err := remote.Refresh(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.Equal(t, "v2.0.0", outcome.VersionHash)
	require.NotZero(t, outcome.AssetCreatedAt)
	require.Equal(t, 1, *downloads)

	data, err := os.ReadFile(ContentPath(remote))
	require.NoError(t, err)
	require.Contains(t, string(data), "test patches")
}

func TestRemoteRefreshNoOpWhenSignatureMatches(t *testing.T) {
	remote, _, downloads := newRemoteFixture(t, "v2.0.0")

	outcome, err := remote.Refresh(context.Background())
	require.NoError(t, err)
	require.Nil(t, outcome)
	require.Equal(t, 0, *downloads)
}

func TestRemoteDownloadLatestIgnoresSignatureMatch(t *testing.T) {
	remote, _, downloads := newRemoteFixture(t, "v2.0.0")

	outcome, err := remote.DownloadLatest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, outcome)
	require.Equal(t, 1, *downloads)
}

func TestRemoteCheck(t *testing.T) {
	remote, _, downloads := newRemoteFixture(t, "v1.0.0")

	manual, err := remote.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, manual)
	require.Equal(t, "v2.0.0", manual.LatestVersion)
	// resolve-only, never downloads
	require.Equal(t, 0, *downloads)

	upToDate, _, _ := newRemoteFixture(t, "v2.0.0")
	manual, err = upToDate.Check(context.Background())
	require.NoError(t, err)
	require.Nil(t, manual)
}

func TestLocalImport(t *testing.T) {
	factory := NewFactory(nil, nil, t.TempDir(), nil)
	variant, err := factory.Materialize(bundle.Source{UID: 11, Name: "mine", Kind: bundle.KindLocal})
	require.NoError(t, err)
	local := variant.(*Local)

	content := `{"name":"local patches","patches":[]}`
	outcome, err := local.Import(io.NopCloser(strings.NewReader(content)))
	require.NoError(t, err)
	require.Equal(t, ContentSignature([]byte(content)), outcome.VersionHash)

	data, err := os.ReadFile(ContentPath(local))
	require.NoError(t, err)
	require.Equal(t, content, string(data))

	// no network variants of refresh for local sources
	refreshed, err := local.Refresh(context.Background())
	require.NoError(t, err)
	require.Nil(t, refreshed)
}

type failingReader struct{ closed bool }

func (r *failingReader) Read([]byte) (int, error) { return 0, errors.New("stream broke") }
func (r *failingReader) Close() error             { r.closed = true; return nil }

func TestLocalImportFailureClosesStreamAndKeepsOldContent(t *testing.T) {
	factory := NewFactory(nil, nil, t.TempDir(), nil)
	variant, err := factory.Materialize(bundle.Source{UID: 12, Name: "mine", Kind: bundle.KindLocal})
	require.NoError(t, err)
	local := variant.(*Local)

	_, err = local.Import(io.NopCloser(strings.NewReader("previous content")))
	require.NoError(t, err)

	reader := &failingReader{}
	_, err = local.Import(reader)
	require.Error(t, err)
	require.True(t, reader.closed)

	data, err := os.ReadFile(ContentPath(local))
	require.NoError(t, err)
	require.Equal(t, "previous content", string(data))

	entries, err := os.ReadDir(local.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1) // no stray temp files
}

func TestDeriveUID(t *testing.T) {
	byContent := DeriveUID([]byte("some content"), "name", "/path")
	require.Equal(t, byContent, DeriveUID([]byte("some content"), "other", "/elsewhere"))
	require.NotEqual(t, byContent, DeriveUID([]byte("different"), "name", "/path"))

	byName := DeriveUID(nil, "name", "/path")
	require.Equal(t, byName, DeriveUID(nil, "name", "/other"))
	require.NotEqual(t, byName, DeriveUID(nil, "other", "/other"))

	byPath := DeriveUID(nil, "", "/path")
	require.NotEqual(t, int64(0), byPath)
	require.Positive(t, byPath)
}

func TestDirExclusivePerUID(t *testing.T) {
	factory := NewFactory(nil, nil, t.TempDir(), nil)
	a, err := factory.DirFor(1)
	require.NoError(t, err)
	b, err := factory.DirFor(2)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.DirExists(t, a)

	require.NoError(t, factory.RemoveDir(1))
	require.NoDirExists(t, a)
	require.DirExists(t, b)
}

func TestMaterializeRejectsBadPullURL(t *testing.T) {
	factory := NewFactory(nil, nil, t.TempDir(), nil)
	_, err := factory.Materialize(bundle.Source{
		UID:  3,
		Name: "pr",
		Kind: bundle.KindPullRequest,
		URL:  "https://github.com/acme/bundles",
	})
	require.ErrorIs(t, err, release.ErrUnsupportedURL)
}
