package streamio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadCookies reads a Netscape-format cookie jar and renders it as the
// header-style string HTTP backends accept: one
// "NAME=VALUE; path=PATH; domain=DOMAIN" entry per line. Comment lines and
// lines with fewer than seven tab-separated fields are skipped. The
// #HttpOnly_ prefix some browsers write is honored rather than treated as
// a comment.
func LoadCookies(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading cookie jar: %w", err)
	}

	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		line = strings.TrimPrefix(line, "#HttpOnly_")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		domain, cpath, name, value := fields[0], fields[2], fields[5], fields[6]
		out = append(out, fmt.Sprintf("%s=%s; path=%s; domain=%s", name, value, cpath, domain))
	}
	return strings.Join(out, "\n"), nil
}

// resolveUserPath expands a leading "~/" to the user's home directory.
func resolveUserPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
