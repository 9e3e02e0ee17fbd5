package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckConfigCompatibility reports whether a config file written by fileVersion can be
// read by binaryVersion.
//
// Rules:
//   - an empty file version or "main" on either side skips the check
//   - major versions must match
//   - the file's minor version must not be newer than the binary's
//   - patch versions are ignored
func CheckConfigCompatibility(binaryVersion, fileVersion string) error {
	binaryVersion = strings.TrimPrefix(binaryVersion, "v")
	fileVersion = strings.TrimPrefix(fileVersion, "v")

	if fileVersion == "" || binaryVersion == "main" || fileVersion == "main" {
		return nil
	}

	binary, err := semver.NewVersion(binaryVersion)
	if err != nil {
		return fmt.Errorf("invalid papertrade version '%s': %w", binaryVersion, err)
	}

	file, err := semver.NewVersion(fileVersion)
	if err != nil {
		return fmt.Errorf("invalid config version '%s': %w", fileVersion, err)
	}

	if binary.Major() != file.Major() {
		return fmt.Errorf("major version mismatch: papertrade is %d.x.x but config was written by %d.x.x",
			binary.Major(), file.Major())
	}

	if file.Minor() > binary.Minor() {
		return fmt.Errorf("config was written by %d.%d.x, newer than papertrade %d.%d.x",
			file.Major(), file.Minor(), binary.Major(), binary.Minor())
	}

	return nil
}
