// Package dotenv loads local development environment files for the MyPitch
// binaries. Real environments configure the process directly; the loader
// never overrides variables that are already set.
package dotenv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Load applies the given dotenv files in order, first value wins. With no
// arguments it loads ".env" from the working directory. Missing files are
// skipped silently.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("open env file %q: %w", path, err)
		}
		pairs, err := parse(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("parse env file %q: %w", path, err)
		}
		for key, val := range pairs {
			if _, exists := os.LookupEnv(key); exists {
				continue
			}
			if err := os.Setenv(key, val); err != nil {
				return fmt.Errorf("set env %q from %q: %w", key, path, err)
			}
		}
	}
	return nil
}

// parse reads KEY=VALUE lines. Blank lines and #-comments are skipped, a
// leading "export " is tolerated, and single or double quotes around the
// value are stripped.
func parse(r io.Reader) (map[string]string, error) {
	pairs := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, val, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		val = strings.TrimSpace(val)
		if len(val) >= 2 {
			switch {
			case strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`),
				strings.HasPrefix(val, "'") && strings.HasSuffix(val, "'"):
				val = val[1 : len(val)-1]
			}
		}
		if _, seen := pairs[key]; !seen {
			pairs[key] = val
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return pairs, nil
}
