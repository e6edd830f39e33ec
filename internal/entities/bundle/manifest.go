package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"patchbay"

	"github.com/blang/semver"
)

var (
	ErrNoManifest        = errors.New("no manifest found in bundle archive")
	ErrManifestEmpty     = errors.New("bundle manifest declares no name")
	ErrManifestTooRecent = errors.New("bundle manifest format is newer than supported")
)

// Info is the metadata parsed from a successfully loaded bundle's
// contents. Rebuilt on every reload; never persisted.
type Info struct {
	Name    string  `json:"name"`
	Version string  `json:"version,omitempty"`
	Format  string  `json:"format,omitempty"`
	UID     int64   `json:"-"`
	Patches []Patch `json:"patches"`
}

// Patch describes one patch definition inside a bundle.
type Patch struct {
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	CompatiblePackages []PackageCompat `json:"compatiblePackages,omitempty"`
}

// PackageCompat lists the app versions a patch supports for one target
// package. An empty Versions slice means any version is supported.
// The order of entries is meaningful: the version resolver breaks count
// ties by preferring later entries.
type PackageCompat struct {
	Name     string   `json:"name"`
	Versions []string `json:"versions,omitempty"`
}

// zipMagic is the local file header signature of a zip archive.
var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// ParseManifest parses bundle content into Info. The content is either a
// raw JSON manifest or a zip archive containing one (CI artifacts are
// always delivered zipped).
func ParseManifest(data []byte) (*Info, error) {
	if bytes.HasPrefix(data, zipMagic) {
		manifest, err := manifestFromArchive(data)
		if err != nil {
			return nil, err
		}
		data = manifest
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("malformed bundle manifest: %w", err)
	}
	if strings.TrimSpace(info.Name) == "" {
		return nil, ErrManifestEmpty
	}
	if info.Format != "" {
		format, err := semver.Parse(info.Format)
		if err != nil {
			return nil, fmt.Errorf("invalid manifest format version %q: %w", info.Format, err)
		}
		if format.Major > patchbay.MinVersionManifest.Major {
			return nil, fmt.Errorf("%w: %s", ErrManifestTooRecent, info.Format)
		}
	}
	return &info, nil
}

// ParseManifestFile parses the bundle content file at path.
func ParseManifestFile(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

func manifestFromArchive(data []byte) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("bundle archive unreadable: %w", err)
	}
	for _, file := range reader.File {
		if file.FileInfo().IsDir() || !strings.HasSuffix(file.Name, ".json") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, ErrNoManifest
}
