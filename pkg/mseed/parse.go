package mseed

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrNotMiniSEED is returned when a payload does not look like a SEED data record.
var ErrNotMiniSEED = errors.New("mseed: not a miniSEED record")

// Parse decodes the fixed section of data header and the blockette chain.
func Parse(raw []byte) (*Record, error) {
	if len(raw) < fixedHeaderLength {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the fixed header", ErrNotMiniSEED, len(raw))
	}
	if !isDigitsOrSpace(raw[0:6]) || !isQuality(raw[6]) {
		return nil, fmt.Errorf("%w: bad sequence number or quality indicator", ErrNotMiniSEED)
	}

	order := detectByteOrder(raw)
	if order == nil {
		return nil, fmt.Errorf("%w: cannot determine byte order", ErrNotMiniSEED)
	}

	rec := &Record{
		SequenceNumber: strings.TrimSpace(string(raw[0:6])),
		Quality:        raw[6],
		Station:        trimField(raw[8:13]),
		Location:       trimField(raw[13:15]),
		Channel:        trimField(raw[15:18]),
		Network:        trimField(raw[18:20]),
		NumSamples:     int(order.Uint16(raw[30:32])),
		rateFactor:     int16(order.Uint16(raw[32:34])),
		rateMultiplier: int16(order.Uint16(raw[34:36])),
		DataOffset:     int(order.Uint16(raw[44:46])),
		Encoding:       -1,
		RecordLength:   len(raw),
		ByteOrder:      order,
	}

	start, err := parseBTime(raw[20:30], order)
	if err != nil {
		return nil, err
	}
	correction := int32(order.Uint32(raw[40:44]))
	if raw[36]&0x02 == 0 && correction != 0 {
		start = start.Add(time.Duration(correction) * 100 * time.Microsecond)
	}
	rec.StartTime = start
	rec.SampleRate = nominalSampleRate(rec.rateFactor, rec.rateMultiplier)

	if err := parseBlockettes(rec, raw, int(raw[39]), int(order.Uint16(raw[46:48]))); err != nil {
		return nil, err
	}
	return rec, nil
}

func parseBlockettes(rec *Record, raw []byte, count, offset int) error {
	seen := 0
	for offset != 0 && seen < count {
		if offset < fixedHeaderLength || offset+blocketteHeaderLength > len(raw) {
			return fmt.Errorf("mseed: blockette offset %d out of range", offset)
		}
		typ := rec.ByteOrder.Uint16(raw[offset : offset+2])
		next := int(rec.ByteOrder.Uint16(raw[offset+2 : offset+4]))
		rec.Blockettes = append(rec.Blockettes, Blockette{Type: typ, Offset: uint16(offset)})

		switch typ {
		case BlocketteDataOnly:
			if offset+8 > len(raw) {
				return fmt.Errorf("mseed: truncated blockette 1000")
			}
			rec.Encoding = int(raw[offset+4])
			if exp := raw[offset+6]; exp >= 7 && exp <= 16 {
				rec.RecordLength = 1 << exp
			}
		case BlocketteSampleRate:
			if offset+8 > len(raw) {
				return fmt.Errorf("mseed: truncated blockette 100")
			}
			rate := math.Float32frombits(rec.ByteOrder.Uint32(raw[offset+4 : offset+8]))
			if rate > 0 {
				rec.SampleRate = float64(rate)
			}
		}

		if next != 0 && next <= offset {
			return fmt.Errorf("mseed: blockette chain loops at offset %d", offset)
		}
		offset = next
		seen++
	}
	return nil
}

// detectByteOrder picks the order in which the start year is plausible.
func detectByteOrder(raw []byte) binary.ByteOrder {
	plausible := func(o binary.ByteOrder) bool {
		year := o.Uint16(raw[20:22])
		day := o.Uint16(raw[22:24])
		return year >= 1900 && year <= 2100 && day >= 1 && day <= 366
	}
	if plausible(binary.BigEndian) {
		return binary.BigEndian
	}
	if plausible(binary.LittleEndian) {
		return binary.LittleEndian
	}
	return nil
}

func parseBTime(b []byte, order binary.ByteOrder) (time.Time, error) {
	year := int(order.Uint16(b[0:2]))
	day := int(order.Uint16(b[2:4]))
	hour, minute, sec := int(b[4]), int(b[5]), int(b[6])
	fract := int(order.Uint16(b[8:10]))
	if hour > 23 || minute > 59 || sec > 60 || fract > 9999 {
		return time.Time{}, fmt.Errorf("mseed: invalid start time %d,%03d,%02d:%02d:%02d.%04d", year, day, hour, minute, sec, fract)
	}
	t := time.Date(year, time.January, 1, hour, minute, sec, fract*100_000, time.UTC)
	return t.AddDate(0, 0, day-1), nil
}

// nominalSampleRate follows the SEED rules for factor and multiplier.
func nominalSampleRate(factor, multiplier int16) float64 {
	var rate float64
	switch {
	case factor > 0:
		rate = float64(factor)
	case factor < 0:
		rate = -1.0 / float64(factor)
	}
	switch {
	case multiplier > 0:
		rate *= float64(multiplier)
	case multiplier < 0:
		rate = -rate / float64(multiplier)
	}
	return rate
}

func trimField(b []byte) string {
	return strings.TrimSpace(string(b))
}

func isDigitsOrSpace(b []byte) bool {
	for _, c := range b {
		if (c < '0' || c > '9') && c != ' ' && c != 0 {
			return false
		}
	}
	return true
}

func isQuality(c byte) bool {
	switch c {
	case 'D', 'R', 'Q', 'M':
		return true
	}
	return false
}
