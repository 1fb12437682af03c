// Package grep implements the recursive, whole-file-matching search
// behind the GRASS grep command. Patterns are POSIX extended regular
// expressions, compiled with regexp.CompilePOSIX.
package grep

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// SearchDirectory walks root recursively and returns, sorted
// ascending, the root-relative paths of every file containing at
// least one line that matches pattern (POSIX extended regular
// expression, no capture groups needed).
func SearchDirectory(root, pattern string) ([]string, error) {
	re, err := regexp.CompilePOSIX(pattern)
	if err != nil {
		return nil, err
	}

	var results []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped silently, best-effort.
			return nil
		}
		if d.IsDir() {
			return nil
		}
		matched, err := fileMatches(re, path)
		if err != nil {
			return nil
		}
		if matched {
			rel, err := filepath.Rel(root, path)
			if err == nil {
				results = append(results, rel)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(results)
	return results, nil
}

func fileMatches(re *regexp.Regexp, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if re.MatchString(scanner.Text()) {
			return true, nil
		}
	}
	return false, nil
}
