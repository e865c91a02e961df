// Package version holds build information injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/longkey1/gchat/internal/version.Version=v1.0.0"
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// Short returns only the version number
func Short() string {
	return Version
}

// Info returns the full version information
func Info() string {
	return fmt.Sprintf("gchat %s\n  commit:     %s\n  built:      %s\n  go version: %s\n  platform:   %s/%s",
		Version, Commit, BuildTime, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
