// Package patchbay provides core application constants and version information
// which are used throughout the application.
package patchbay

import "github.com/blang/semver"

const (
	// Version is the current version of the application.
	Version = "0.6.0"
	// AppName is the name of the application.
	AppName = "patchbay"
)

// MinVersionManifest is the minimum supported bundle manifest format version.
var MinVersionManifest = semver.MustParse("1.0.0")
