// Package store reads and writes the timestamp fields of media files.
//
// EXIF stores cover JPEG and TIFF files and patch tag values in place. XMP
// stores cover .xmp sidecar files. Both buffer writes and persist them on
// Commit through a temporary file and a rename.
package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quidome/tznormalize-go/pkg/normalize"
)

var (
	// ErrUnsupportedFile is returned by Open for file types without a store.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrUnknownField is returned when writing a field the store did not list.
	ErrUnknownField = errors.New("unknown field")

	// ErrValueShape is returned when a new value cannot be stored in the
	// space or shape the old value occupied.
	ErrValueShape = errors.New("value does not fit field")

	// ErrNotWritable is returned for fields whose location in the file is unknown.
	ErrNotWritable = errors.New("field is not writable")
)

// Kind is a store implementation.
type Kind string

const (
	KindEXIF Kind = "exif"
	KindXMP  Kind = "xmp"
)

var kinds = map[string]Kind{
	".jpg":  KindEXIF,
	".jpeg": KindEXIF,
	".tif":  KindEXIF,
	".tiff": KindEXIF,
	".xmp":  KindXMP,
}

// Extensions returns the file extensions Open supports, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(kinds))
	for ext := range kinds {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// KindOf returns the store kind for path, based on its extension.
func KindOf(path string) (Kind, bool) {
	k, ok := kinds[strings.ToLower(filepath.Ext(path))]
	return k, ok
}

// Open opens the store matching path's extension.
func Open(path string) (normalize.Store, error) {
	kind, ok := KindOf(path)
	if !ok {
		return nil, fmt.Errorf("%s: %w", filepath.Ext(path), ErrUnsupportedFile)
	}

	switch kind {
	case KindXMP:
		s, err := OpenXMP(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := OpenEXIF(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
