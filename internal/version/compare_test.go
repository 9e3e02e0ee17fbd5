package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConfigCompatibility(t *testing.T) {
	tests := []struct {
		name          string
		binaryVersion string
		fileVersion   string
		expectError   bool
		errorContains string
	}{
		{name: "exact match", binaryVersion: "1.2.0", fileVersion: "1.2.0"},
		{name: "patch differs", binaryVersion: "1.2.0", fileVersion: "1.2.7"},
		{name: "file from older minor", binaryVersion: "1.4.0", fileVersion: "1.2.0"},
		{name: "v prefix", binaryVersion: "v1.2.0", fileVersion: "v1.2.3"},
		{name: "unversioned file", binaryVersion: "1.2.0", fileVersion: ""},
		{name: "development binary", binaryVersion: "main", fileVersion: "3.0.0"},
		{name: "development file", binaryVersion: "1.2.0", fileVersion: "main"},
		{name: "prerelease", binaryVersion: "1.2.0-rc.1", fileVersion: "1.2.0"},
		{
			name:          "file from newer minor",
			binaryVersion: "1.2.0",
			fileVersion:   "1.3.0",
			expectError:   true,
			errorContains: "newer than papertrade",
		},
		{
			name:          "major differs",
			binaryVersion: "2.0.0",
			fileVersion:   "1.9.0",
			expectError:   true,
			errorContains: "major version mismatch",
		},
		{
			name:          "invalid file version",
			binaryVersion: "1.2.0",
			fileVersion:   "yesterday",
			expectError:   true,
			errorContains: "invalid config version",
		},
		{
			name:          "invalid binary version",
			binaryVersion: "dev-build",
			fileVersion:   "1.2.0",
			expectError:   true,
			errorContains: "invalid papertrade version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckConfigCompatibility(tt.binaryVersion, tt.fileVersion)

			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
