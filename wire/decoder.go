// Package wire decodes the compact FDB1 multi-series frame.
//
// Layout, little-endian throughout:
//
//	magic "FDB1" | u16 series count | u32 total points
//	per series:  u16 id len | id | u16 name len | name | u32 point count | f64 base ts (ms)
//	then, per series in header order: point count × (u32 offset seconds | f32 value)
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"pattern-detector/models"
)

const (
	Magic = "FDB1"

	pointRecordSize = 8
)

var (
	ErrInvalidMagic  = errors.New("wire: invalid magic")
	ErrTruncated     = errors.New("wire: truncated frame")
	ErrCountMismatch = errors.New("wire: point count mismatch")
	ErrTrailingBytes = errors.New("wire: trailing bytes after frame")
	ErrFieldTooLarge = errors.New("wire: field exceeds format limits")
)

type header struct {
	id         string
	name       *string
	pointCount uint32
	baseMs     float64
}

// reader walks a buffer with bounds checks; the first short read sticks.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, len(r.buf)-r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) f64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func (r *reader) str(n int) string {
	return string(r.take(n))
}

// Decode parses a complete frame. It never returns partial results: any
// structural problem fails the whole frame.
func Decode(buf []byte) ([]models.Series, error) {
	r := &reader{buf: buf}

	magic := r.take(len(Magic))
	if r.err != nil {
		return nil, fmt.Errorf("%w: frame shorter than magic", ErrInvalidMagic)
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("%w: got %q", ErrInvalidMagic, magic)
	}

	seriesCount := int(r.u16())
	totalPoints := r.u32()
	if r.err != nil {
		return nil, r.err
	}

	headers := make([]header, seriesCount)
	var declared uint64
	for i := range headers {
		h := &headers[i]
		h.id = r.str(int(r.u16()))
		nameLen := int(r.u16())
		if nameLen > 0 {
			name := r.str(nameLen)
			h.name = &name
		}
		h.pointCount = r.u32()
		h.baseMs = r.f64()
		if r.err != nil {
			return nil, fmt.Errorf("series header %d: %w", i, r.err)
		}
		declared += uint64(h.pointCount)
	}

	if declared != uint64(totalPoints) {
		return nil, fmt.Errorf("%w: headers declare %d, frame declares %d", ErrCountMismatch, declared, totalPoints)
	}

	remaining := uint64(len(buf) - r.off)
	need := declared * pointRecordSize
	if remaining < need {
		return nil, fmt.Errorf("%w: point data needs %d bytes, have %d", ErrTruncated, need, remaining)
	}
	if remaining > need {
		return nil, fmt.Errorf("%w: %d extra bytes", ErrTrailingBytes, remaining-need)
	}

	// Bulk scan: sizes are already validated, so records are read without per-field checks.
	series := make([]models.Series, seriesCount)
	data := buf[r.off:]
	pos := 0
	for i, h := range headers {
		points := make([]models.Point, h.pointCount)
		base := int64(math.Round(h.baseMs))
		for j := range points {
			offset := binary.LittleEndian.Uint32(data[pos:])
			raw := math.Float32frombits(binary.LittleEndian.Uint32(data[pos+4:]))
			pos += pointRecordSize

			points[j].Timestamp = base + int64(offset)*1000
			if !math.IsNaN(float64(raw)) {
				points[j].Value = models.Float(float64(raw))
			}
		}
		series[i] = models.Series{
			SensorID:        h.id,
			SensorName:      h.name,
			BaseTimestampMs: h.baseMs,
			Points:          points,
		}
	}

	return series, nil
}
