// Package version carries build metadata, set at link time:
//
//	go build -ldflags "-X github.com/shiporbit/shiporbit/internal/version.Version=$(cat VERSION)"
package version

// Version stores the current release version
var Version = "dev"

// Commit is the source revision the binary was built from.
var Commit = ""
