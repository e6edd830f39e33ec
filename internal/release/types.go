package release

import "time"

// GitHub REST shapes, reduced to the fields the resolver reads.

type ghRelease struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	HTMLURL     string    `json:"html_url"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []ghAsset `json:"assets"`
}

type ghAsset struct {
	Name               string    `json:"name"`
	BrowserDownloadURL string    `json:"browser_download_url"`
	CreatedAt          time.Time `json:"created_at"`
}

type ghPull struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
	Head    struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

type ghWorkflowRuns struct {
	TotalCount int             `json:"total_count"`
	Runs       []ghWorkflowRun `json:"workflow_runs"`
}

type ghWorkflowRun struct {
	ID           int64     `json:"id"`
	HeadSHA      string    `json:"head_sha"`
	DisplayTitle string    `json:"display_title"`
	HTMLURL      string    `json:"html_url"`
	CreatedAt    time.Time `json:"created_at"`
}

type ghArtifacts struct {
	TotalCount int          `json:"total_count"`
	Artifacts  []ghArtifact `json:"artifacts"`
}

type ghArtifact struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	ArchiveDownloadURL string    `json:"archive_download_url"`
	CreatedAt          time.Time `json:"created_at"`
	Expired            bool      `json:"expired"`
}

// assetDocument is the Candidate Release JSON shape consumed from remote
// JSON feeds. Field names are an external contract.
type assetDocument struct {
	CreatedAt            string `json:"created_at"`
	Description          string `json:"description"`
	DownloadURL          string `json:"download_url"`
	SignatureDownloadURL string `json:"signature_download_url,omitempty"`
	Version              string `json:"version"`
}
