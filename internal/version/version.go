package version

// Version is the papertrade release. It is set at build time:
// -ldflags "-X github.com/rxtech-lab/argo-papertrade/internal/version.Version=v1.2.3"
// "main" marks a development build.
var Version = "main"

// GetVersion returns the running release.
func GetVersion() string {
	return Version
}
