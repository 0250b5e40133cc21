package database

import (
	"os"
	"path/filepath"
)

// wellKnownPaths lists locations probed, in priority order, when the
// configured database file does not exist. Deployments have historically
// placed the mirror database in a few different directories; discovery keeps
// an upgraded daemon pointed at its existing data.
var wellKnownPaths = []string{
	"./data/oktamirror.sqlite",
	"./oktamirror.sqlite",
	"/var/lib/oktamirror/oktamirror.sqlite",
	"/data/oktamirror.sqlite",
}

// DiscoverPath returns the configured path when the file exists, otherwise the
// first well-known location holding a database file. When nothing is found the
// configured path is returned unchanged so a fresh database is created there.
func DiscoverPath(configured string) string {
	if configured != "" && fileExists(configured) {
		return configured
	}

	for _, candidate := range wellKnownPaths {
		if candidate == configured {
			continue
		}
		if fileExists(candidate) {
			return candidate
		}
	}

	return configured
}

func fileExists(path string) bool {
	info, err := os.Stat(filepath.Clean(path))
	return err == nil && !info.IsDir()
}
