package plugins

import (
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Archive is a content-addressable package: a list of named entries and the
// bytes behind each name.
type Archive interface {
	Path() string
	Entries() []string
	Has(name string) bool
	Open(name string) (io.ReadCloser, error)
	ReadEntry(name string) ([]byte, error)
	Close() error
}

// zipArchive is the on-disk Archive implementation
type zipArchive struct {
	path   string
	rc     *zip.ReadCloser
	byName map[string]*zip.File
	names  []string
}

// OpenArchive opens the zip package at path
func OpenArchive(path string) (Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAPackage, err)
	}

	a := &zipArchive{
		path:   path,
		rc:     rc,
		byName: make(map[string]*zip.File, len(rc.File)),
	}
	for _, f := range rc.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		if _, dup := a.byName[f.Name]; dup {
			continue
		}
		a.byName[f.Name] = f
		a.names = append(a.names, f.Name)
	}

	return a, nil
}

func (a *zipArchive) Path() string {
	return a.path
}

// Entries returns entry names in archive order, directories excluded
func (a *zipArchive) Entries() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

func (a *zipArchive) Has(name string) bool {
	_, ok := a.byName[name]
	return ok
}

func (a *zipArchive) Open(name string) (io.ReadCloser, error) {
	f, ok := a.byName[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return f.Open()
}

func (a *zipArchive) ReadEntry(name string) ([]byte, error) {
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", name, err)
	}
	return data, nil
}

func (a *zipArchive) Close() error {
	return a.rc.Close()
}
