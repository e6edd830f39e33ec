package release

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"patchbay/internal/entities/bundle"
	"patchbay/internal/transport"
)

// DefaultRepoURL is the page shown for feeds whose hosting pattern
// cannot be derived from the feed URL.
const DefaultRepoURL = "https://github.com/patchbay-tools/bundles"

const timestampFallbackLayout = "2006-01-02 15:04:05"

// ResolveJSON fetches a remote JSON feed and maps it to a candidate
// release. The document's field names and the timestamp fallback are a
// hard external contract.
func (r *Resolver) ResolveJSON(ctx context.Context, feedURL string) (*bundle.CandidateRelease, error) {
	doc, err := transport.JSON[assetDocument](ctx, r.client, transport.Spec{URL: feedURL, Header: r.Header()})
	if err != nil {
		return nil, err
	}
	if doc.DownloadURL == "" || doc.Version == "" {
		return nil, fmt.Errorf("feed %s is missing download_url or version", feedURL)
	}
	createdAt, err := parseFeedTimestamp(doc.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &bundle.CandidateRelease{
		DownloadURL:  doc.DownloadURL,
		SignatureURL: doc.SignatureDownloadURL,
		Version:      doc.Version,
		CreatedAt:    createdAt,
		Description:  doc.Description,
		PageURL:      pageURLFromFeed(feedURL),
	}, nil
}

// parseFeedTimestamp accepts the primary ISO-8601 form and a secondary
// space-separated fallback. Both failing fails the whole resolution;
// no default timestamp is ever substituted.
func parseFeedTimestamp(value string) (time.Time, error) {
	if at, err := time.Parse(time.RFC3339, value); err == nil {
		return at, nil
	}
	if at, err := time.Parse(timestampFallbackLayout, value); err == nil {
		return at, nil
	}
	return time.Time{}, fmt.Errorf("unparseable feed timestamp %q", value)
}

// pageURLFromFeed derives a human-facing repository page from known
// feed hosting patterns, falling back to the default repository URL.
func pageURLFromFeed(feedURL string) string {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return DefaultRepoURL
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")

	// raw.githubusercontent.com/OWNER/REPO/...
	if parsed.Host == "raw.githubusercontent.com" && len(segments) >= 2 {
		return "https://github.com/" + segments[0] + "/" + segments[1]
	}

	// HOST/OWNER/REPO/raw/...
	if len(segments) >= 3 && segments[2] == "raw" {
		return "https://" + parsed.Host + "/" + segments[0] + "/" + segments[1]
	}

	return DefaultRepoURL
}
