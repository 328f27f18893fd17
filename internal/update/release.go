package update

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/mod/semver"

	"prdeck/internal/types"
)

const (
	BinaryName    = "prdeck"
	archiveSuffix = ".tar.gz"
)

// ReleaseFeed lists published releases, newest first.
type ReleaseFeed interface {
	ListReleases(ctx context.Context) ([]types.Release, error)
}

// AssetName is the release asset for a platform, or "" when the platform is
// not published.
func AssetName(goos, goarch string) string {
	switch goos {
	case "linux", "darwin":
	default:
		return ""
	}
	switch goarch {
	case "amd64", "arm64":
	default:
		return ""
	}
	return fmt.Sprintf("%s-%s-%s", BinaryName, goos, goarch)
}

func PlatformAssetName() string {
	return AssetName(runtime.GOOS, runtime.GOARCH)
}

// canonicalVersion turns "1.2.3" or "v1.2.3" into the "v1.2.3" form semver
// expects. It returns "" for anything unparseable.
func canonicalVersion(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "v") {
		raw = "v" + raw
	}
	if !semver.IsValid(raw) {
		return ""
	}
	return semver.Canonical(raw)
}

// DisplayVersion strips the leading "v".
func DisplayVersion(raw string) string {
	return strings.TrimPrefix(strings.TrimSpace(raw), "v")
}

// latestEligible picks the highest stable release. Drafts, prereleases and
// tags that are not semantic versions are skipped.
func latestEligible(releases []types.Release) (types.Release, string, bool) {
	var best types.Release
	bestVersion := ""
	for _, release := range releases {
		if release.Draft || release.Prerelease {
			continue
		}
		version := canonicalVersion(release.TagName)
		if version == "" || semver.Prerelease(version) != "" {
			continue
		}
		if bestVersion == "" || semver.Compare(version, bestVersion) > 0 {
			best = release
			bestVersion = version
		}
	}
	return best, bestVersion, bestVersion != ""
}

// selectAsset prefers the plain binary over the archive.
func selectAsset(release types.Release, name string) (types.ReleaseAsset, bool) {
	if name == "" {
		return types.ReleaseAsset{}, false
	}
	var archive *types.ReleaseAsset
	for i, asset := range release.Assets {
		switch asset.Name {
		case name:
			return asset, true
		case name + archiveSuffix:
			archive = &release.Assets[i]
		}
	}
	if archive != nil {
		return *archive, true
	}
	return types.ReleaseAsset{}, false
}
