package playlist

import "strings"

const rawGitHubHost = "https://raw.githubusercontent.com/"

// RewriteGitHubURL converts GitHub page URLs to raw.githubusercontent.com
// download URLs:
//
//	https://github.com/OWNER/REPO/blob/BRANCH/path        -> raw/OWNER/REPO/BRANCH/path
//	https://github.com/OWNER/REPO/raw/refs/heads/BRANCH/p -> raw/OWNER/REPO/BRANCH/p
//
// When releasePrefix and rawPrefix are set, release download URLs starting
// with releasePrefix are mapped to rawPrefix plus the file name. Other URLs
// are returned unchanged.
func RewriteGitHubURL(u, releasePrefix, rawPrefix string) string {
	if rawPrefix != "" && strings.HasPrefix(u, rawPrefix) {
		return u
	}
	if releasePrefix != "" && rawPrefix != "" && strings.Contains(u, releasePrefix) {
		return rawPrefix + u[strings.LastIndex(u, "/")+1:]
	}
	if !strings.Contains(u, "github.com/") {
		return u
	}

	parts := strings.Split(u, "/")
	// https: "" github.com OWNER REPO kind ...
	if len(parts) < 7 || parts[2] != "github.com" {
		return u
	}
	owner, repo := parts[3], parts[4]

	switch {
	case parts[5] == "blob":
		return rawGitHubHost + strings.Join(append([]string{owner, repo}, parts[6:]...), "/")
	case parts[5] == "raw" && len(parts) > 9 && parts[6] == "refs" && parts[7] == "heads":
		return rawGitHubHost + strings.Join(append([]string{owner, repo}, parts[8:]...), "/")
	default:
		return u
	}
}
