package biz

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/fx"

	"github.com/looplj/approvalhub/internal/build"
	"github.com/looplj/approvalhub/internal/pkg/httpclient"
)

const defaultReleasesURL = "https://api.github.com/repos/looplj/approvalhub/releases"

type VersionConfig struct {
	// ReleasesURL is the GitHub-style releases API endpoint checked
	// for updates.
	ReleasesURL string `conf:"releases_url" yaml:"releases_url" json:"releases_url"`
}

type VersionServiceParams struct {
	fx.In

	Config VersionConfig
	Client *httpclient.Client
}

type VersionService struct {
	client      *httpclient.Client
	releasesURL string
}

func NewVersionService(params VersionServiceParams) *VersionService {
	releasesURL := params.Config.ReleasesURL
	if releasesURL == "" {
		releasesURL = defaultReleasesURL
	}

	return &VersionService{
		client:      params.Client,
		releasesURL: releasesURL,
	}
}

// VersionCheckResult contains the result of a version check.
type VersionCheckResult struct {
	CurrentVersion string `json:"current_version"`
	LatestVersion  string `json:"latest_version"`
	HasUpdate      bool   `json:"has_update"`
	ReleaseURL     string `json:"release_url"`
}

// GitHubRelease represents a release returned by the releases API.
type GitHubRelease struct {
	TagName    string `json:"tag_name"`
	Prerelease bool   `json:"prerelease"`
	Draft      bool   `json:"draft"`
	HTMLURL    string `json:"html_url"`
}

// CheckForUpdate checks if a newer stable version is available.
func (s *VersionService) CheckForUpdate(ctx context.Context) (*VersionCheckResult, error) {
	currentVersion := build.Version

	latest, err := s.fetchLatestRelease(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest release: %w", err)
	}

	return &VersionCheckResult{
		CurrentVersion: currentVersion,
		LatestVersion:  latest.TagName,
		HasUpdate:      IsNewerVersion(currentVersion, latest.TagName),
		ReleaseURL:     latest.HTMLURL,
	}, nil
}

// fetchLatestRelease fetches the latest stable release, skipping drafts
// and prereleases.
func (s *VersionService) fetchLatestRelease(ctx context.Context) (*GitHubRelease, error) {
	query := url.Values{}
	query.Set("per_page", "5")
	query.Set("page", "1")

	headers := http.Header{}
	headers.Set("Accept", "application/vnd.github.v3+json")

	resp, err := s.client.Do(ctx, &httpclient.Request{
		Method:  http.MethodGet,
		URL:     s.releasesURL,
		Query:   query,
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}

	var releases []GitHubRelease
	if err := resp.DecodeJSON(&releases); err != nil {
		return nil, fmt.Errorf("failed to decode releases: %w", err)
	}

	for _, release := range releases {
		if release.Draft || release.Prerelease {
			continue
		}

		if isPreReleaseTag(release.TagName) {
			continue
		}

		return &release, nil
	}

	return nil, fmt.Errorf("no stable release found")
}

// isPreReleaseTag checks if a version tag carries a prerelease marker.
func isPreReleaseTag(tag string) bool {
	lowerTag := strings.ToLower(tag)
	preReleasePatterns := []string{"-beta", "-rc", "-alpha", "-dev", "-preview", "-snapshot"}

	for _, pattern := range preReleasePatterns {
		if strings.Contains(lowerTag, pattern) {
			return true
		}
	}

	return false
}

// IsNewerVersion compares two semantic versions and returns true if
// latest is newer than current. Versions are expected to be in format
// "vX.Y.Z" or "X.Y.Z".
func IsNewerVersion(current, latest string) bool {
	vCurrent, err := semver.NewVersion(current)
	if err != nil {
		return false
	}

	vLatest, err := semver.NewVersion(latest)
	if err != nil {
		return false
	}

	return vLatest.GreaterThan(vCurrent)
}
