package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/fxamacker/cbor/v2"
)

const (
	partSuffix = ".part"
	metaSuffix = ".part.meta"
)

// partMeta ties a partial download to its origin so a resume never
// appends bytes fetched from a different URL or content revision.
type partMeta struct {
	URL  string `cbor:"0,keyasint"`
	ETag string `cbor:"1,keyasint,omitempty"`
}

// Download fetches spec into target. When resume is true and a partial
// file from the same URL exists, the request is ranged and the partial
// file extended; if the server ignores the range (any status other than
// 206), the partial file is discarded and the download restarts from
// zero. The target is only ever replaced whole: bytes land in a side
// file which is renamed over target after a fully successful fetch.
func (c *Client) Download(ctx context.Context, target string, resume bool, spec Spec) error {
	partPath := target + partSuffix
	metaPath := target + metaSuffix

	offset, etag := int64(0), ""
	if resume {
		offset, etag = resumePoint(partPath, metaPath, spec.URL)
	}

	header := http.Header{}
	for key, values := range spec.Header {
		header[key] = values
	}
	if offset > 0 {
		header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		if etag != "" {
			// a changed revision makes the server answer 200, which
			// takes the restart path below
			header.Set("If-Range", etag)
		}
	}

	resp, err := c.do(ctx, Spec{Method: spec.Method, URL: spec.URL, Header: header, Body: spec.Body})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var part *os.File
	switch {
	case offset > 0 && resp.StatusCode == http.StatusPartialContent:
		part, err = os.OpenFile(partPath, os.O_WRONLY|os.O_APPEND, 0o644)
	case successStatus(resp.StatusCode):
		if offset > 0 {
			slog.Info("Range not honored, restarting download", "logger", "transport", "url", spec.URL, "status", resp.StatusCode)
		}
		part, err = os.Create(partPath)
		if err == nil {
			err = writePartMeta(metaPath, partMeta{URL: spec.URL, ETag: resp.Header.Get("ETag")})
		}
	default:
		return statusError(resp)
	}
	if err != nil {
		return &RequestError{Cause: err}
	}

	_, copyErr := io.Copy(part, resp.Body)
	closeErr := part.Close()
	if copyErr != nil {
		// keep the partial file and its meta for a later resume
		return &RequestError{Cause: copyErr}
	}
	if closeErr != nil {
		return &RequestError{Cause: closeErr}
	}

	if err := os.Rename(partPath, target); err != nil {
		return &RequestError{Cause: err}
	}
	_ = os.Remove(metaPath)
	return nil
}

// resumePoint returns the byte offset to resume from and the validator
// recorded for the partial file, or 0 when no partial file exists or it
// belongs to a different URL.
func resumePoint(partPath, metaPath, url string) (int64, string) {
	stat, err := os.Stat(partPath)
	if err != nil || stat.Size() == 0 {
		return 0, ""
	}
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return 0, ""
	}
	var meta partMeta
	if err := cbor.Unmarshal(data, &meta); err != nil || meta.URL != url {
		return 0, ""
	}
	return stat.Size(), meta.ETag
}

func writePartMeta(path string, meta partMeta) error {
	data, err := cbor.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
