// Package update checks a release manifest for a newer version of cord.
//
// The manifest is a JSON object mapping package paths to versions, as
// maintained by release-please; the "." entry is the latest release of the
// whole module.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// maxManifestBytes bounds the manifest download.
const maxManifestBytes = 64 << 10

var (
	httpClient     *retryablehttp.Client
	httpClientOnce sync.Once
)

func getHTTPClient() *retryablehttp.Client {
	httpClientOnce.Do(func() {
		httpClient = retryablehttp.NewClient()
		httpClient.RetryMax = 2
		httpClient.HTTPClient.Timeout = 5 * time.Second
		httpClient.Logger = nil // suppress retryablehttp's default logging
	})
	return httpClient
}

// ///////////////////////////////////////////////
// Public API
// ///////////////////////////////////////////////

// Check fetches the manifest at url and logs when it names a version newer
// than current. An empty url disables the check. Failures are logged at
// debug and otherwise ignored.
func Check(ctx context.Context, url, current string) {
	if url == "" {
		slog.Debug("skipping version check: no manifest URL configured")
		return
	}
	latest, err := fetchLatest(ctx, url)
	if err != nil {
		slog.Debug("version check failed", "error", err)
		return
	}
	if Newer(current, latest) {
		slog.Info("new version available", "current", current, "latest", latest)
	}
}

// Newer reports whether latest is a strictly newer release than current.
// Versions that do not parse as semver never compare as newer.
func Newer(current, latest string) bool {
	if latest == "" || latest == current {
		return false
	}
	return semverLess(current, latest)
}

// ///////////////////////////////////////////////
// Internal helpers
// ///////////////////////////////////////////////

// fetchLatest downloads the manifest and returns its "." entry.
func fetchLatest(ctx context.Context, url string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	resp, err := getHTTPClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var manifest map[string]string
	if err := json.Unmarshal(body, &manifest); err != nil {
		return "", fmt.Errorf("parsing manifest: %w", err)
	}
	return manifest["."], nil
}

// semverLess reports whether a < b comparing major, minor and patch. A
// pre-release sorts before the same version without one ("0.1.0-dev" <
// "0.1.0"); two pre-releases of the same version are not ordered.
func semverLess(a, b string) bool {
	pa := parseSemver(a)
	pb := parseSemver(b)
	if pa == nil || pb == nil {
		return false
	}
	for i := range 3 {
		if pa[i] != pb[i] {
			return pa[i] < pb[i]
		}
	}
	return hasPreRelease(a) && !hasPreRelease(b)
}

// hasPreRelease reports whether s carries a pre-release suffix. Build
// metadata after "+" may contain hyphens and is ignored.
func hasPreRelease(s string) bool {
	s, _, _ = strings.Cut(s, "+")
	return strings.Contains(s, "-")
}

// parseSemver splits "v1.2.3" or "0.1.0-dev+abc" into [major, minor, patch],
// or returns nil when s is not a three-part numeric version.
func parseSemver(s string) []int {
	s = strings.TrimPrefix(s, "v")
	parts := strings.SplitN(s, ".", 3)
	if len(parts) != 3 {
		return nil
	}
	result := make([]int, 3)
	for i, p := range parts {
		if idx := strings.IndexAny(p, "-+"); idx >= 0 {
			p = p[:idx]
		}
		if p == "" {
			return nil
		}
		n := 0
		for _, c := range p {
			if c < '0' || c > '9' {
				return nil
			}
			n = n*10 + int(c-'0')
		}
		result[i] = n
	}
	return result
}
