package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Build identity for the contextq binary, stamped via -ldflags:
//
//	-X github.com/contextq/contextq/internal/common.Version=...
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the release version
func GetVersion() string {
	return Version
}

// GetBuild returns the build timestamp
func GetBuild() string {
	return Build
}

// GetGitCommit returns the git commit hash
func GetGitCommit() string {
	return GitCommit
}

// GetFullVersion returns the version with build metadata appended
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// LoadVersionFromFile overrides the stamped version with the contents of a
// .version file next to the binary, when one exists. Deployments that ship
// the file can bump the reported version without a rebuild.
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
