// Package bundle defines the record and domain types for patch bundle
// sources and their loaded metadata.
package bundle

// DefaultSourceUID is the reserved uid of the official bundle source.
// It is never deleted, only hidden and restored.
const DefaultSourceUID int64 = 0

type SourceKind string

const (
	KindLocal       SourceKind = "local"
	KindRemote      SourceKind = "remote"
	KindPullRequest SourceKind = "pull_request"
)

// Source is one persisted bundle source record.
type Source struct {
	UID         int64      `db:"uid" json:"uid"`
	Name        string     `db:"name" json:"name"`
	DisplayName string     `db:"display_name" json:"display_name,omitempty"`
	Kind        SourceKind `db:"kind" json:"kind"`
	// URL is the remote JSON feed or pull request reference.
	// Empty for local sources.
	URL         string `db:"url" json:"url,omitempty"`
	AutoUpdate  bool   `db:"auto_update" json:"auto_update"`
	VersionHash string `db:"version_hash" json:"version_hash,omitempty"`
	SortOrder   int    `db:"sort_order" json:"sort_order"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
	UpdatedAt   int64  `db:"updated_at" json:"updated_at"`
}

// Label returns the user-facing name of the source.
func (s Source) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// IsDefault reports whether this is the official source record.
func (s Source) IsDefault() bool {
	return s.UID == DefaultSourceUID
}
