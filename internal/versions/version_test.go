package versions

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		version       string
		commit        string
		buildDate     string
		build         map[string]string
		wantVersion   string
		wantCommit    string
		wantBuildDate string
	}{
		{
			name:          "release build keeps ldflags values",
			version:       "v1.2.0",
			commit:        "0123456789abcdef",
			buildDate:     "2024-06-01T12:00:00Z",
			build:         map[string]string{"vcs.revision": "ffffffff"},
			wantVersion:   "v1.2.0",
			wantCommit:    "0123456789abcdef",
			wantBuildDate: "2024-06-01 12:00:00 UTC",
		},
		{
			name:          "dev build reads vcs settings",
			version:       "dev",
			commit:        unknownStr,
			buildDate:     unknownStr,
			build:         map[string]string{"vcs.revision": "abcdef0123456789", "vcs.time": "2024-06-02T08:30:00Z"},
			wantVersion:   "build-abcdef01",
			wantCommit:    "abcdef0123456789",
			wantBuildDate: "2024-06-02 08:30:00 UTC",
		},
		{
			name:          "dev build without vcs settings",
			version:       "dev",
			commit:        unknownStr,
			buildDate:     unknownStr,
			build:         map[string]string{},
			wantVersion:   "build-unknown",
			wantCommit:    unknownStr,
			wantBuildDate: unknownStr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			info := versionInfo(tt.version, tt.commit, tt.buildDate, tt.build)
			assert.Equal(t, tt.wantVersion, info.Version)
			assert.Equal(t, tt.wantCommit, info.Commit)
			assert.Equal(t, tt.wantBuildDate, info.BuildDate)
			assert.Equal(t, runtime.Version(), info.GoVersion)
		})
	}
}
