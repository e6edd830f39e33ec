package bundle

import "time"

// CandidateRelease is the resolved "latest available" artifact for a
// source, prior to download. Never persisted; only its version and
// timestamps survive as derived record fields.
type CandidateRelease struct {
	DownloadURL  string
	SignatureURL string
	Version      string
	CreatedAt    time.Time
	Description  string
	PageURL      string
}

// UpdateOutcome is the result of a successful refresh or forced download.
type UpdateOutcome struct {
	VersionHash string
	// AssetCreatedAt is the upstream asset creation time in unix
	// milliseconds, 0 when the source has no upstream timestamp.
	AssetCreatedAt int64
}

// ManualUpdate records an available update for a source excluded from
// unattended refresh cycles. Cleared once the source is updated or
// becomes auto-updating.
type ManualUpdate struct {
	LatestVersion string `json:"latest_version,omitempty"`
	PageURL       string `json:"page_url,omitempty"`
}
