package proxy

import "strconv"

// NormalizePath splits an incoming request path into the Discord API
// prefix (including a version segment if present, e.g. "/api/v10") and the
// remaining path used for route classification and upstream dispatch.
// A path with no "/api" prefix is treated as if "/api" had been supplied.
func NormalizePath(requestPath string) (apiPath, rest string) {
	trimmed, ok := cutPrefix(requestPath, "/api")
	if !ok {
		return "/api", requestPath
	}

	if seg, ok := firstSegment(trimmed); ok {
		if n, ok := versionNumber(seg); ok {
			_ = n
			prefixLen := len("/api/v") + len(seg) - 1
			return requestPath[:prefixLen], requestPath[prefixLen:]
		}
	}

	return "/api", trimmed
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	return s[len(prefix):], true
}

// firstSegment returns the first "/"-delimited segment of a path that
// itself begins with "/", e.g. "/v10/channels/1" -> "v10".
func firstSegment(path string) (string, bool) {
	if len(path) == 0 || path[0] != '/' {
		return "", false
	}
	rest := path[1:]
	for i, c := range rest {
		if c == '/' {
			return rest[:i], true
		}
	}
	return rest, true
}

func versionNumber(seg string) (int, bool) {
	if len(seg) < 2 || seg[0] != 'v' {
		return 0, false
	}
	n, err := strconv.Atoi(seg[1:])
	if err != nil {
		return 0, false
	}
	return n, true
}
