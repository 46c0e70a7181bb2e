package handler

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// splitTarget separates the path of a request target from its query.
// The fragment, if a client sent one, is dropped.
func splitTarget(target string) (p, query string) {
	p, _, _ = strings.Cut(target, "#")
	p, query, _ = strings.Cut(p, "?")
	return p, query
}

// urlPath returns the decoded path of a request target.
// Targets that fail to decode are used verbatim.
func urlPath(target string) string {
	p, _ := splitTarget(target)
	if decoded, err := url.PathUnescape(p); err == nil {
		return decoded
	}
	return p
}

// translatePath maps a request target onto the file system below root.
// Empty, "." and ".." segments are dropped so the result never leaves root.
// A trailing slash on the request path is kept.
func translatePath(root, target string) string {
	p := urlPath(target)
	trailing := strings.HasSuffix(p, "/")

	result := root
	for _, word := range strings.Split(path.Clean("/"+p), "/") {
		if word == "" || word == "." || word == ".." {
			continue
		}
		// Separators other than "/" must not smuggle in path components.
		if strings.ContainsRune(word, filepath.Separator) || filepath.VolumeName(word) != "" {
			word = filepath.Base(word)
			if word == "." || word == ".." || word == string(filepath.Separator) {
				continue
			}
		}
		result = filepath.Join(result, word)
	}
	if trailing {
		result += string(filepath.Separator)
	}
	return result
}
