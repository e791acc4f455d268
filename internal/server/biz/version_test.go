package biz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/approvalhub/internal/build"
	"github.com/looplj/approvalhub/internal/pkg/httpclient"
)

func newVersionService(t *testing.T, releases []GitHubRelease) *VersionService {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		assert.Equal(t, "5", r.URL.Query().Get("per_page"))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(releases))
	}))
	t.Cleanup(server.Close)

	return NewVersionService(VersionServiceParams{
		Config: VersionConfig{ReleasesURL: server.URL},
		Client: httpclient.NewClient(),
	})
}

func TestVersionServiceCheckForUpdate(t *testing.T) {
	svc := newVersionService(t, []GitHubRelease{
		{TagName: "v99.0.0", HTMLURL: "https://example.com/v99.0.0"},
	})

	result, err := svc.CheckForUpdate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, build.Version, result.CurrentVersion)
	assert.Equal(t, "v99.0.0", result.LatestVersion)
	assert.True(t, result.HasUpdate)
	assert.Equal(t, "https://example.com/v99.0.0", result.ReleaseURL)
}

func TestVersionServiceSkipsUnstableReleases(t *testing.T) {
	svc := newVersionService(t, []GitHubRelease{
		{TagName: "v99.1.0", Draft: true},
		{TagName: "v99.0.0", Prerelease: true},
		{TagName: "v98.0.0-rc1"},
		{TagName: "v97.0.0", HTMLURL: "https://example.com/v97.0.0"},
	})

	result, err := svc.CheckForUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v97.0.0", result.LatestVersion)
}

func TestVersionServiceNoStableRelease(t *testing.T) {
	svc := newVersionService(t, []GitHubRelease{
		{TagName: "v99.0.0-beta.1"},
	})

	_, err := svc.CheckForUpdate(context.Background())
	assert.ErrorContains(t, err, "no stable release")
}

func TestVersionServiceOldRelease(t *testing.T) {
	svc := newVersionService(t, []GitHubRelease{
		{TagName: "v0.0.1"},
	})

	result, err := svc.CheckForUpdate(context.Background())
	require.NoError(t, err)
	assert.False(t, result.HasUpdate)
}

func TestIsNewerVersion(t *testing.T) {
	tests := []struct {
		current string
		latest  string
		want    bool
	}{
		{"v1.0.0", "v1.0.1", true},
		{"v1.0.0", "v1.0.0", false},
		{"v1.2.0", "v1.1.9", false},
		{"1.0.0", "v2.0.0", true},
		{"garbage", "v1.0.0", false},
		{"v1.0.0", "garbage", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsNewerVersion(tt.current, tt.latest), "%s -> %s", tt.current, tt.latest)
	}
}

func TestIsPreReleaseTag(t *testing.T) {
	assert.True(t, isPreReleaseTag("v1.0.0-beta.1"))
	assert.True(t, isPreReleaseTag("v1.0.0-RC2"))
	assert.True(t, isPreReleaseTag("v1.0.0-alpha"))
	assert.False(t, isPreReleaseTag("v1.0.0"))
	assert.False(t, isPreReleaseTag("v1.0.0+build.5"))
}
