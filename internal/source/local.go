package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"patchbay/internal/entities/bundle"

	"github.com/google/uuid"
)

// Local is a source imported from a caller-supplied byte stream. It has
// no upstream, so refresh and manual checks are no-ops.
type Local struct {
	record bundle.Source
	dir    string
}

func (l *Local) Record() bundle.Source { return l.record }
func (l *Local) Dir() string           { return l.dir }

func (l *Local) Refresh(context.Context) (*bundle.UpdateOutcome, error) {
	return nil, nil
}

func (l *Local) DownloadLatest(context.Context) (*bundle.UpdateOutcome, error) {
	return nil, nil
}

func (l *Local) Check(context.Context) (*bundle.ManualUpdate, error) {
	return nil, nil
}

// Import replaces the source's content with the stream. The stream is
// fully consumed and closed even on failure; the content file is
// swapped in whole or left untouched.
func (l *Local) Import(stream io.ReadCloser) (*bundle.UpdateOutcome, error) {
	outcome, err := importStream(stream, filepath.Join(l.dir, ContentFileName))
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func importStream(stream io.ReadCloser, target string) (*bundle.UpdateOutcome, error) {
	defer func() {
		_, _ = io.Copy(io.Discard, stream)
		_ = stream.Close()
	}()

	tmp := filepath.Join(filepath.Dir(target), "import-"+uuid.NewString()+".tmp")
	file, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("creating import file: %w", err)
	}

	hasher := newSignatureHasher()
	_, copyErr := io.Copy(io.MultiWriter(file, hasher), stream)
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		if copyErr != nil {
			return nil, fmt.Errorf("importing bundle: %w", copyErr)
		}
		return nil, fmt.Errorf("importing bundle: %w", closeErr)
	}

	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}
	return &bundle.UpdateOutcome{VersionHash: hasher.Hex()}, nil
}
