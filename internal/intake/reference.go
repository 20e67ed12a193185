package intake

import (
	"regexp"
	"strings"
)

var fileIDPattern = regexp.MustCompile(`(?:/file/d/|[?&]id=)([A-Za-z0-9_-]+)`)

// ExtractFileID returns the file id carried by a link of the form .../file/d/<id>/...
// or ...?id=<id>. The leftmost match wins.
func ExtractFileID(ref string) (string, bool) {
	m := fileIDPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CanonicalLink builds <base>/file/d/<id>/view
func CanonicalLink(base, id string) string {
	return strings.TrimRight(base, "/") + "/file/d/" + id + "/view"
}
