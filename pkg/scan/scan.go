// Package scan finds the files to normalize.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/quidome/tznormalize-go/pkg/store"
)

type Options struct {
	// MaxDepth limits how deep directories are walked. -1 means no limit,
	// 0 means only the directory itself.
	MaxDepth int

	Extensions []string
}

// DefaultOptions walks without a depth limit and matches every extension a
// metadata store exists for.
func DefaultOptions() Options {
	return Options{
		MaxDepth:   -1,
		Extensions: store.Extensions(),
	}
}

// Scan returns the slash-separated paths below root, relative to root, of
// the files whose extension is listed in opts. The result is in natural
// order, so IMG_2.jpg comes before IMG_10.jpg.
func Scan(fsys fs.FS, root string, opts Options) ([]string, error) {
	if opts.MaxDepth < -1 {
		return nil, fs.ErrInvalid
	}

	exts := normalizeExts(opts.Extensions)

	var matches []string

	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if opts.MaxDepth >= 0 && depth(rel) >= opts.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if opts.MaxDepth >= 0 && depth(rel) > opts.MaxDepth {
			return nil
		}

		if !exts[strings.ToLower(filepath.Ext(rel))] {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		matches = append(matches, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Sort(natural.StringSlice(matches))
	return matches, nil
}

// Expand turns command line arguments into file paths. Files are kept as
// given, whatever their extension; directories are scanned. Duplicates are
// dropped and the order of the arguments is kept.
func Expand(args []string, opts Options) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			// Missing files are reported per file by the caller.
			add(arg)
			continue
		}
		if !info.IsDir() {
			add(arg)
			continue
		}

		rels, err := Scan(os.DirFS(arg), ".", opts)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", arg, err)
		}
		for _, rel := range rels {
			add(filepath.Join(arg, filepath.FromSlash(rel)))
		}
	}
	return out, nil
}

func normalizeExts(exts []string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, ext := range exts {
		e := strings.TrimSpace(strings.ToLower(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		m[e] = true
	}
	return m
}

func depth(rel string) int {
	rel = filepath.Clean(rel)
	if rel == "." {
		return 0
	}
	return strings.Count(filepath.ToSlash(rel), "/")
}
