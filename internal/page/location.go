// Package page reads what the video page itself knows: its location, the
// inline initial state script, and the player metadata API response.
package page

import "strings"

const videoPathPrefix = "/video/"

// IsVideoPath reports whether path is a video page.
func IsVideoPath(path string) bool {
	return strings.HasPrefix(path, videoPathPrefix)
}

// VideoIDFromPath returns the video id of a video page path such as
// "/video/BV1xx411c7mD/", or "" when path is not a video page.
func VideoIDFromPath(path string) string {
	if !IsVideoPath(path) {
		return ""
	}
	rest := strings.TrimPrefix(path, videoPathPrefix)
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
