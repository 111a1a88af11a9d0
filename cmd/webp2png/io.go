package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// readInput reads path, or stdin when path is "-".
func (a *app) readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(a.stdin)
	}
	return os.ReadFile(path)
}

// defaultOutput derives <base><ext> in the working directory from the
// input path, or output<ext> for stdin.
func defaultOutput(input, ext string) string {
	if input == "-" {
		return "output" + ext
	}
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ext
}

func displayName(path string) string {
	if path == "-" {
		return "<stdin>"
	}
	return path
}

// createOutput opens path for writing and returns a commit function that
// closes it, removing the file if write reported an error or close fails.
func createOutput(path string) (*os.File, func(writeErr error) error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	commit := func(writeErr error) error {
		closeErr := f.Close()
		if writeErr != nil {
			os.Remove(path)
			return writeErr
		}
		if closeErr != nil {
			os.Remove(path)
			return fmt.Errorf("closing %s: %w", path, closeErr)
		}
		return nil
	}
	return f, commit, nil
}
