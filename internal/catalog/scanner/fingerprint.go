package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IsTracked reports whether a file name takes part in the fingerprint.
func IsTracked(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".fixture_download_") {
		return false
	}
	switch filepath.Ext(base) {
	case ".cdl", ".yml", ".yaml":
		return true
	}
	return false
}

// Fingerprint hashes the names and contents of the tracked files directly
// under dir, plus any extra files, in name order.
func Fingerprint(dir string, extra ...string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading fixture directory: %w", err)
	}

	seen := make(map[string]bool)
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !IsTracked(e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		seen[p] = true
		paths = append(paths, p)
	}
	for _, p := range extra {
		if p == "" || seen[filepath.Clean(p)] {
			continue
		}
		seen[filepath.Clean(p)] = true
		paths = append(paths, filepath.Clean(p))
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			rel = p
		}
		io.WriteString(h, filepath.ToSlash(rel))
		h.Write([]byte{0})

		f, err := os.Open(p)
		if err != nil {
			return "", fmt.Errorf("opening %s: %w", p, err)
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hashing %s: %w", p, err)
		}
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
