// Package source materializes bundle source records into their
// polymorphic variants and manages each source's private on-disk
// directory.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"patchbay/internal/entities/bundle"
	"patchbay/internal/release"
	"patchbay/internal/transport"
)

// ContentFileName is the bundle content file inside a source directory.
const ContentFileName = "bundle.json"

// SignatureFileName is the detached signature next to the content file.
const SignatureFileName = "bundle.json.sig"

// Variant is one materialized bundle source. The three implementations
// (Local, Remote, PullRequest) form a closed set.
type Variant interface {
	// Record returns the persisted record this variant was built from.
	Record() bundle.Source
	// Refresh fetches the latest content only when the upstream
	// signature differs from the stored one. A nil outcome with a nil
	// error means nothing changed.
	Refresh(ctx context.Context) (*bundle.UpdateOutcome, error)
	// DownloadLatest always re-fetches, regardless of signature match.
	DownloadLatest(ctx context.Context) (*bundle.UpdateOutcome, error)
	// Check resolves the latest upstream version without downloading,
	// for sources excluded from unattended updates. A nil result means
	// no update is available (or the variant has no upstream).
	Check(ctx context.Context) (*bundle.ManualUpdate, error)
	// Dir is the variant's exclusively owned directory.
	Dir() string
}

// ContentPath returns the bundle content file for a variant.
func ContentPath(v Variant) string {
	return filepath.Join(v.Dir(), ContentFileName)
}

// Factory builds variants and resolves their private directories.
type Factory struct {
	client   *transport.Client
	resolver *release.Resolver
	root     string
	// prereleases reports whether prerelease hosted releases may be
	// selected for repository-backed remote sources.
	prereleases func() bool
}

func NewFactory(client *transport.Client, resolver *release.Resolver, root string, prereleases func() bool) *Factory {
	if prereleases == nil {
		prereleases = func() bool { return false }
	}
	return &Factory{client: client, resolver: resolver, root: root, prereleases: prereleases}
}

// DirFor resolves the private directory of a source by uid, creating it
// if needed. No two sources share a directory.
func (f *Factory) DirFor(uid int64) (string, error) {
	dir := filepath.Join(f.root, strconv.FormatInt(uid, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating source dir: %w", err)
	}
	return dir, nil
}

// Materialize builds the variant for a record.
func (f *Factory) Materialize(record bundle.Source) (Variant, error) {
	dir, err := f.DirFor(record.UID)
	if err != nil {
		return nil, err
	}
	switch record.Kind {
	case bundle.KindLocal:
		return &Local{record: record, dir: dir}, nil
	case bundle.KindRemote:
		return &Remote{record: record, dir: dir, client: f.client, resolver: f.resolver, prereleases: f.prereleases}, nil
	case bundle.KindPullRequest:
		ref, err := release.ParsePullURL(record.URL)
		if err != nil {
			return nil, err
		}
		return &PullRequest{record: record, dir: dir, client: f.client, resolver: f.resolver, ref: ref}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", record.Kind)
	}
}

// RemoveDir deletes a source's on-disk materialization.
func (f *Factory) RemoveDir(uid int64) error {
	return os.RemoveAll(filepath.Join(f.root, strconv.FormatInt(uid, 10)))
}
