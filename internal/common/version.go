package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Build metadata, stamped with -ldflags. Packaged deploys may ship a
// .version file beside the binary, which overrides the compiled-in version.
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the current version string
func GetVersion() string {
	return Version
}

// GetBuild returns the build timestamp
func GetBuild() string {
	return Build
}

// GetFullVersion returns the version with build and commit details, for the
// -version flag and the status endpoint.
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// LoadVersionFromFile overrides Version from a .version file next to the
// executable, when one exists. Returns the effective version either way.
func LoadVersionFromFile() string {
	exePath, err := os.Executable()
	if err != nil {
		return Version
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(exePath), ".version"))
	if err != nil {
		return Version
	}

	if v := strings.TrimSpace(string(data)); v != "" {
		Version = v
	}
	return Version
}
