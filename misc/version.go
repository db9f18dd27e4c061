// Package misc keeps build time program information.
package misc

// Set with -ldflags "-X ovfx/misc.version=... -X ovfx/misc.gitHash=..."
var (
	appName = "ovfx"
	version = "dev"
	gitHash = "unknown"
)

func GetAppName() string {
	return appName
}

func GetVersion() string {
	return version
}

func GetGitHash() string {
	return gitHash
}
