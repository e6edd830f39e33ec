package release

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

var ErrUnsupportedURL = errors.New("unsupported repository url shape")

// RepoRef identifies a hosted repository, optionally narrowed to one
// pull request.
type RepoRef struct {
	Owner      string
	Repo       string
	PullNumber int
}

// ParsePullURL parses a pull request reference of the form
// https://github.com/OWNER/REPO/pull/NUMBER.
func ParsePullURL(raw string) (RepoRef, error) {
	segments, err := pathSegments(raw)
	if err != nil {
		return RepoRef{}, err
	}
	if len(segments) < 4 || segments[2] != "pull" {
		return RepoRef{}, fmt.Errorf("%w: %s", ErrUnsupportedURL, raw)
	}
	number, err := strconv.Atoi(segments[3])
	if err != nil || number <= 0 {
		return RepoRef{}, fmt.Errorf("%w: bad pull number in %s", ErrUnsupportedURL, raw)
	}
	return RepoRef{Owner: segments[0], Repo: segments[1], PullNumber: number}, nil
}

// ParseRepoURL parses a repository root reference of the form
// https://github.com/OWNER/REPO. Anything deeper than the repository
// root is rejected so it cannot be mistaken for a JSON feed.
func ParseRepoURL(raw string) (RepoRef, error) {
	segments, err := pathSegments(raw)
	if err != nil {
		return RepoRef{}, err
	}
	if len(segments) != 2 {
		return RepoRef{}, fmt.Errorf("%w: %s", ErrUnsupportedURL, raw)
	}
	return RepoRef{Owner: segments[0], Repo: strings.TrimSuffix(segments[1], ".git")}, nil
}

// IsRepoURL reports whether raw is a bare github.com repository
// reference rather than a document URL.
func IsRepoURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host != "github.com" {
		return false
	}
	_, err = ParseRepoURL(raw)
	return err == nil
}

func pathSegments(raw string) ([]string, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, raw)
	}
	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, raw)
	}
	segments := strings.Split(path, "/")
	for _, segment := range segments {
		if segment == "" {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, raw)
		}
	}
	return segments, nil
}
