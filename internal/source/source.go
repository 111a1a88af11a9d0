// Package source enumerates image files from a directory or a .zip archive
// for the batch converter and the PDF binder.
package source

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultMaxEntryBytes caps how much of a single entry is read into memory.
const DefaultMaxEntryBytes = 256 << 20

var (
	// ErrUnsupported is returned for a path that is neither a directory nor
	// a .zip file.
	ErrUnsupported = errors.New("source: path is not a directory or a .zip archive")

	// ErrEntryTooLarge is returned by ReadAll when an entry exceeds its limit.
	ErrEntryTooLarge = errors.New("source: entry too large")
)

// Entry is one candidate image.
type Entry struct {
	// Name is the base file name, e.g. "page01.webp".
	Name string
	// Path is the file path, or the member path inside the archive.
	Path string
	Size int64

	open func() (io.ReadCloser, error)
}

// Stem returns Name without its extension.
func (e Entry) Stem() string {
	return strings.TrimSuffix(e.Name, path.Ext(e.Name))
}

// Open opens the entry for reading. Entries of one Set may be read
// concurrently.
func (e Entry) Open() (io.ReadCloser, error) {
	return e.open()
}

// ReadAll reads the whole entry. limit <= 0 means DefaultMaxEntryBytes.
func (e Entry) ReadAll(limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxEntryBytes
	}
	rc, err := e.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, fmt.Errorf("source: reading %s: %w", e.Path, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrEntryTooLarge, e.Path, limit)
	}
	return data, nil
}

// Set is the sorted list of entries taken from one source.
type Set struct {
	Root    string
	Archive bool
	Entries []Entry

	closer io.Closer
}

// Close releases the archive, if any.
func (s *Set) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// IsArchive reports whether p names a zip archive by extension.
func IsArchive(p string) bool {
	return strings.EqualFold(filepath.Ext(p), ".zip")
}

// Open lists the files under root whose lowercase extension is in exts.
// Directories are read non-recursively. Archive members in subfolders are
// included; macOS resource forks and hidden files are not. Entries are
// sorted by path.
func Open(root string, exts []string) (*Set, error) {
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}
	match := func(name string) bool {
		if strings.HasPrefix(name, ".") {
			return false
		}
		return allowed[strings.ToLower(path.Ext(name))]
	}

	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	switch {
	case fi.IsDir():
		return openDir(root, match)
	case IsArchive(root):
		return openZip(root, match)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, root)
	}
}

func openDir(root string, match func(string) bool) (*Set, error) {
	des, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	set := &Set{Root: root}
	// ReadDir returns entries sorted by filename.
	for _, de := range des {
		if !de.Type().IsRegular() || !match(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		p := filepath.Join(root, de.Name())
		set.Entries = append(set.Entries, Entry{
			Name: de.Name(),
			Path: p,
			Size: info.Size(),
			open: func() (io.ReadCloser, error) { return os.Open(p) },
		})
	}
	return set, nil
}

func openZip(root string, match func(string) bool) (*Set, error) {
	zr, err := zip.OpenReader(root)
	if err != nil {
		return nil, fmt.Errorf("source: opening %s: %w", root, err)
	}
	set := &Set{Root: root, Archive: true, closer: zr}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		name := path.Base(f.Name)
		if !match(name) {
			continue
		}
		set.Entries = append(set.Entries, Entry{
			Name: name,
			Path: f.Name,
			Size: int64(f.UncompressedSize64),
			open: f.Open,
		})
	}
	sort.SliceStable(set.Entries, func(i, j int) bool {
		return set.Entries[i].Path < set.Entries[j].Path
	})
	return set, nil
}
