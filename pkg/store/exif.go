package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/quidome/tznormalize-go/pkg/timestamp"
)

// EXIF tag IDs. Offset tags are from EXIF 2.31 and unknown to goexif's field
// maps, so tags are matched by ID instead of by name.
const (
	tagDateTime            = 0x0132
	tagExifIFDPointer      = 0x8769
	tagDateTimeOriginal    = 0x9003
	tagDateTimeDigitized   = 0x9004
	tagOffsetTime          = 0x9010
	tagOffsetTimeOriginal  = 0x9011
	tagOffsetTimeDigitized = 0x9012
	tagSubSecTime          = 0x9290
	tagSubSecTimeOriginal  = 0x9291
	tagSubSecTimeDigitized = 0x9292
)

// exifDateLen is the length of "2006:01:02 15:04:05".
const exifDateLen = 19

type exifTimeTags struct {
	name   string
	date   uint16
	offset uint16
	subsec uint16
}

// exifTimes lists the timestamp fields in the order they are reported.
var exifTimes = []exifTimeTags{
	{name: "DateTime", date: tagDateTime, offset: tagOffsetTime, subsec: tagSubSecTime},
	{name: "DateTimeOriginal", date: tagDateTimeOriginal, offset: tagOffsetTimeOriginal, subsec: tagSubSecTimeOriginal},
	{name: "DateTimeDigitized", date: tagDateTimeDigitized, offset: tagOffsetTimeDigitized, subsec: tagSubSecTimeDigitized},
}

var (
	reEXIFDate   = regexp.MustCompile(`^\d{4}:\d{2}:\d{2} \d{2}:\d{2}:\d{2}$`)
	reEXIFOffset = regexp.MustCompile(`^[+-]\d{2}:\d{2}$`)
	reDigits     = regexp.MustCompile(`^\d+$`)
)

// slot is where an ASCII tag value lives in the file.
type slot struct {
	pos  int // absolute file position
	size int // bytes available, including the NUL terminator
}

type exifField struct {
	id     string
	value  string
	date   *slot
	offset *slot
	subsec string
}

// EXIF is the metadata store of a JPEG or TIFF file.
//
// Writes patch the ASCII tag values in place, so a new value must have the
// same shape as the old one. The image data is never touched.
type EXIF struct {
	path   string
	data   []byte
	fields []exifField

	lat, lon float64
	hasGPS   bool

	dirty bool
}

// OpenEXIF reads the EXIF block of the file at path. A file without EXIF
// opens as a store with no fields.
func OpenEXIF(path string) (*EXIF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s := &EXIF{path: path, data: data}

	x, err := exif.Decode(bytes.NewReader(data))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		// Best-effort: no readable EXIF means no timestamp fields.
		return s, nil
	}

	if lat, lon, err := x.LatLong(); err == nil {
		s.lat, s.lon, s.hasGPS = lat, lon, true
	}

	base := bytes.Index(data, x.Raw)
	if len(x.Raw) == 0 || base < 0 || x.Tiff == nil || len(x.Tiff.Dirs) == 0 {
		return s, nil
	}

	tags := make(map[uint16]*tiff.Tag)
	for _, t := range x.Tiff.Dirs[0].Tags {
		tags[t.Id] = t
	}
	if ptr, ok := tags[tagExifIFDPointer]; ok {
		sub, err := decodeSubDir(x.Raw, ptr, x.Tiff.Order)
		if err != nil {
			return nil, fmt.Errorf("exif sub-IFD: %w", err)
		}
		for _, t := range sub.Tags {
			tags[t.Id] = t
		}
	}

	for _, tt := range exifTimes {
		dt, ok := tags[tt.date]
		if !ok || dt.Type != tiff.DTAscii {
			continue
		}

		f := exifField{id: tt.name, value: asciiValue(dt), date: slotOf(base, dt)}
		if t, ok := tags[tt.subsec]; ok && t.Type == tiff.DTAscii {
			if v := asciiValue(t); reDigits.MatchString(v) {
				f.subsec = v
			}
		}
		if t, ok := tags[tt.offset]; ok && t.Type == tiff.DTAscii {
			if v := asciiValue(t); reEXIFOffset.MatchString(v) {
				f.offset = slotOf(base, t)
				f.value = joinEXIFValue(f.value, f.subsec, v)
				s.fields = append(s.fields, f)
				continue
			}
		}
		f.value = joinEXIFValue(f.value, f.subsec, "")
		s.fields = append(s.fields, f)
	}

	return s, nil
}

func (s *EXIF) ListTimestampFields() ([]timestamp.RawField, error) {
	out := make([]timestamp.RawField, 0, len(s.fields))
	for _, f := range s.fields {
		hint := timestamp.HintEXIFNaive
		if f.offset != nil {
			hint = timestamp.HintEXIFOffset
		}
		out = append(out, timestamp.RawField{ID: f.id, Value: f.value, Hint: hint})
	}
	return out, nil
}

// WriteField patches the date and offset tags behind id. The sub-second part
// of value must be unchanged, since it lives in a separate tag that is not
// rewritten.
func (s *EXIF) WriteField(id, value string) error {
	var f *exifField
	for i := range s.fields {
		if s.fields[i].id == id {
			f = &s.fields[i]
			break
		}
	}
	if f == nil {
		return fmt.Errorf("%s: %w", id, ErrUnknownField)
	}

	date, subsec, offset, err := splitEXIFValue(value)
	if err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	if subsec != f.subsec {
		return fmt.Errorf("%s: sub-seconds %q differ from %q: %w", id, subsec, f.subsec, ErrValueShape)
	}
	if offset != "" && f.offset == nil {
		return fmt.Errorf("%s: no offset tag to hold %q: %w", id, offset, ErrValueShape)
	}

	if err := s.patch(f.date, date); err != nil {
		return fmt.Errorf("%s: %w", id, err)
	}
	if offset != "" {
		if err := s.patch(f.offset, offset); err != nil {
			return fmt.Errorf("%s offset: %w", id, err)
		}
	}

	f.value = value
	s.dirty = true
	return nil
}

// Coordinates returns the GPS position recorded in the file, if any.
func (s *EXIF) Coordinates() (lat, lon float64, ok bool) {
	return s.lat, s.lon, s.hasGPS
}

// Commit writes the patched file back. It does nothing if no field changed.
func (s *EXIF) Commit() error {
	if !s.dirty {
		return nil
	}
	if err := replaceFile(s.path, s.data); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *EXIF) patch(sl *slot, value string) error {
	if sl == nil {
		return ErrNotWritable
	}
	// The value must leave room for the NUL terminator.
	if len(value) >= sl.size {
		return fmt.Errorf("%q needs %d bytes, tag holds %d: %w", value, len(value)+1, sl.size, ErrValueShape)
	}
	if sl.pos < 0 || sl.pos+sl.size > len(s.data) {
		return ErrNotWritable
	}
	buf := make([]byte, sl.size)
	copy(buf, value)
	copy(s.data[sl.pos:], buf)
	return nil
}

func decodeSubDir(raw []byte, ptr *tiff.Tag, order binary.ByteOrder) (*tiff.Dir, error) {
	if len(ptr.Val) < 4 {
		return nil, errors.New("short IFD pointer")
	}
	offset := int64(order.Uint32(ptr.Val))

	r := bytes.NewReader(raw)
	if _, err := r.Seek(offset, 0); err != nil {
		return nil, err
	}
	dir, _, err := tiff.DecodeDir(r, order)
	if err != nil {
		return nil, err
	}
	return dir, nil
}

// slotOf returns the file position of t's value. Values of four bytes or less
// are stored inside the IFD entry and have no known position.
func slotOf(base int, t *tiff.Tag) *slot {
	if t.Count <= 4 || t.ValOffset == 0 {
		return nil
	}
	return &slot{pos: base + int(t.ValOffset), size: int(t.Count)}
}

func asciiValue(t *tiff.Tag) string {
	return strings.TrimSpace(strings.TrimRight(string(t.Val), "\x00"))
}

func joinEXIFValue(date, subsec, offset string) string {
	if subsec != "" {
		date += "." + subsec
	}
	return date + offset
}

// splitEXIFValue is the inverse of joinEXIFValue.
func splitEXIFValue(value string) (date, subsec, offset string, err error) {
	if len(value) < exifDateLen {
		return "", "", "", fmt.Errorf("%q: %w", value, ErrValueShape)
	}
	date, rest := value[:exifDateLen], value[exifDateLen:]
	if !reEXIFDate.MatchString(date) {
		return "", "", "", fmt.Errorf("%q: %w", value, ErrValueShape)
	}

	if strings.HasPrefix(rest, ".") {
		end := 1
		for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
			end++
		}
		subsec, rest = rest[1:end], rest[end:]
	}

	if rest != "" && !reEXIFOffset.MatchString(rest) {
		return "", "", "", fmt.Errorf("%q: %w", value, ErrValueShape)
	}
	return date, subsec, rest, nil
}
