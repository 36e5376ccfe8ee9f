package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"pattern-detector/models"
)

// Encode builds an FDB1 frame from decoded series. Point timestamps are
// written as whole-second offsets from the series base timestamp, so they must
// not precede it. Absent values are written as NaN.
func Encode(series []models.Series) ([]byte, error) {
	if len(series) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d series", ErrFieldTooLarge, len(series))
	}

	var total uint64
	for _, s := range series {
		total += uint64(len(s.Points))
	}
	if total > math.MaxUint32 {
		return nil, fmt.Errorf("%w: %d points", ErrFieldTooLarge, total)
	}

	buf := new(bytes.Buffer)
	buf.WriteString(Magic)
	binary.Write(buf, binary.LittleEndian, uint16(len(series)))
	binary.Write(buf, binary.LittleEndian, uint32(total))

	for _, s := range series {
		name := ""
		if s.SensorName != nil {
			name = *s.SensorName
		}
		if len(s.SensorID) > math.MaxUint16 || len(name) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: sensor %q id or name too long", ErrFieldTooLarge, s.SensorID)
		}
		binary.Write(buf, binary.LittleEndian, uint16(len(s.SensorID)))
		buf.WriteString(s.SensorID)
		binary.Write(buf, binary.LittleEndian, uint16(len(name)))
		buf.WriteString(name)
		binary.Write(buf, binary.LittleEndian, uint32(len(s.Points)))
		binary.Write(buf, binary.LittleEndian, s.BaseTimestampMs)
	}

	for _, s := range series {
		base := int64(math.Round(s.BaseTimestampMs))
		for _, p := range s.Points {
			deltaMs := p.Timestamp - base
			if deltaMs < 0 || deltaMs%1000 != 0 || deltaMs/1000 > math.MaxUint32 {
				return nil, fmt.Errorf("%w: sensor %q timestamp %d not encodable from base %d",
					ErrFieldTooLarge, s.SensorID, p.Timestamp, base)
			}
			value := float32(math.NaN())
			if p.Value != nil {
				value = float32(*p.Value)
			}
			binary.Write(buf, binary.LittleEndian, uint32(deltaMs/1000))
			binary.Write(buf, binary.LittleEndian, math.Float32bits(value))
		}
	}

	return buf.Bytes(), nil
}
