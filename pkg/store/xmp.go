package store

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"trimmer.io/go-xmp/xmp"

	"github.com/quidome/tznormalize-go/pkg/timestamp"
)

// xmpDateProperties are the local names of XMP properties holding timestamps,
// in any namespace (xmp:, exif:, photoshop:, tiff:, ...).
var xmpDateProperties = map[string]bool{
	"CreateDate":        true,
	"ModifyDate":        true,
	"MetadataDate":      true,
	"DateTimeOriginal":  true,
	"DateTimeDigitized": true,
	"DateCreated":       true,
	"DateTime":          true,
}

// reXMPDateOnly matches the reduced XMP date forms without a time of day.
// They carry no zone to normalize and are left alone.
var reXMPDateOnly = regexp.MustCompile(`^\d{4}(?:-\d{2}(?:-\d{2})?)?$`)

type xmpField struct {
	path  string
	value string
}

// XMP is the metadata store of an .xmp sidecar file.
//
// Writes replace the property's text in the document, leaving everything
// else in the file byte for byte as it was.
type XMP struct {
	path   string
	data   []byte
	fields []xmpField
	dirty  bool
}

// OpenXMP reads the sidecar file at path.
func OpenXMP(path string) (*XMP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc xmp.Document
	if err := xmp.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshaling XMP document: %w", err)
	}
	paths, err := doc.ListPaths()
	if err != nil {
		return nil, fmt.Errorf("listing XMP paths: %w", err)
	}

	s := &XMP{path: path, data: data}
	seen := make(map[string]bool)
	for _, p := range paths {
		name := string(p.Path)
		if seen[name] || !isXMPDateProperty(name) {
			continue
		}
		if reXMPDateOnly.MatchString(strings.TrimSpace(p.Value)) {
			continue
		}
		// Only keep properties whose text can be located for writing.
		if !xmpPropertyFound(data, name, p.Value) {
			continue
		}
		seen[name] = true
		s.fields = append(s.fields, xmpField{path: name, value: p.Value})
	}

	return s, nil
}

func (s *XMP) ListTimestampFields() ([]timestamp.RawField, error) {
	out := make([]timestamp.RawField, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, timestamp.RawField{ID: f.path, Value: f.value})
	}
	return out, nil
}

func (s *XMP) WriteField(id, value string) error {
	var f *xmpField
	for i := range s.fields {
		if s.fields[i].path == id {
			f = &s.fields[i]
			break
		}
	}
	if f == nil {
		return fmt.Errorf("%s: %w", id, ErrUnknownField)
	}
	if strings.ContainsAny(value, `<>&"'$`) {
		return fmt.Errorf("%s: %q: %w", id, value, ErrValueShape)
	}

	if !xmpPropertyFound(s.data, f.path, f.value) {
		return fmt.Errorf("%s: %w", id, ErrNotWritable)
	}
	for _, re := range xmpPropertyPatterns(f.path, f.value) {
		s.data = re.ReplaceAll(s.data, []byte("${1}"+value+"${2}"))
	}

	f.value = value
	s.dirty = true
	return nil
}

// Commit writes the sidecar back. It does nothing if no field changed.
func (s *XMP) Commit() error {
	if !s.dirty {
		return nil
	}
	if err := replaceFile(s.path, s.data); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// isXMPDateProperty matches simple, top-level properties such as
// "xmp:CreateDate"; nested paths are skipped.
func isXMPDateProperty(path string) bool {
	if strings.ContainsAny(path, "/[") {
		return false
	}
	i := strings.IndexByte(path, ':')
	if i < 0 {
		return false
	}
	return xmpDateProperties[path[i+1:]]
}

// xmpPropertyPatterns match the property written either as an attribute
// (xmp:CreateDate="...") or as an element (<xmp:CreateDate>...</xmp:CreateDate>).
// Groups 1 and 2 hold the text around the value.
func xmpPropertyPatterns(name, value string) []*regexp.Regexp {
	n, v := regexp.QuoteMeta(name), regexp.QuoteMeta(value)
	return []*regexp.Regexp{
		regexp.MustCompile(`(\b` + n + `\s*=\s*")` + v + `(")`),
		regexp.MustCompile(`(\b` + n + `\s*=\s*')` + v + `(')`),
		regexp.MustCompile(`(<` + n + `(?:\s[^>]*)?>\s*)` + v + `(\s*</` + n + `>)`),
	}
}

func xmpPropertyFound(data []byte, name, value string) bool {
	for _, re := range xmpPropertyPatterns(name, value) {
		if re.Match(data) {
			return true
		}
	}
	return false
}
