package mseed

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testBlockette struct {
	typ  uint16
	body []byte
}

// buildRecord assembles a 512-byte record with the given blockettes chained
// after the fixed header.
func buildRecord(order binary.ByteOrder, samples uint16, factor, multiplier int16, blockettes ...testBlockette) []byte {
	raw := make([]byte, 512)
	copy(raw[0:6], "000042")
	raw[6] = 'D'
	raw[7] = ' '
	copy(raw[8:13], "KONO ")
	copy(raw[13:15], "00")
	copy(raw[15:18], "BHZ")
	copy(raw[18:20], "IU")
	order.PutUint16(raw[20:22], 2023)
	order.PutUint16(raw[22:24], 318)
	raw[24], raw[25], raw[26] = 22, 13, 20
	order.PutUint16(raw[28:30], 5000)
	order.PutUint16(raw[30:32], samples)
	order.PutUint16(raw[32:34], uint16(factor))
	order.PutUint16(raw[34:36], uint16(multiplier))
	raw[39] = byte(len(blockettes))
	order.PutUint16(raw[44:46], 64)

	offset := 48
	if len(blockettes) > 0 {
		order.PutUint16(raw[46:48], uint16(offset))
	}
	for i, bl := range blockettes {
		order.PutUint16(raw[offset:offset+2], bl.typ)
		next := 0
		if i < len(blockettes)-1 {
			next = offset + 4 + len(bl.body)
		}
		order.PutUint16(raw[offset+2:offset+4], uint16(next))
		copy(raw[offset+4:], bl.body)
		offset += 4 + len(bl.body)
	}
	return raw
}

func b1000() testBlockette {
	return testBlockette{typ: BlocketteDataOnly, body: []byte{11, 1, 9, 0}}
}

func TestParse_BigEndianDataRecord(t *testing.T) {
	raw := buildRecord(binary.BigEndian, 412, 40, 1, b1000())

	rec, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "IU_KONO_00_BHZ", rec.SourceName())
	assert.Equal(t, "000042", rec.SequenceNumber)
	assert.Equal(t, byte('D'), rec.Quality)
	assert.Equal(t, 412, rec.NumSamples)
	assert.Equal(t, 40.0, rec.SampleRate)
	assert.Equal(t, 11, rec.Encoding)
	assert.Equal(t, 512, rec.RecordLength)
	assert.Equal(t, binary.BigEndian, rec.ByteOrder)
	assert.True(t, rec.NominalRate())
	assert.True(t, rec.HasBlockette(BlocketteDataOnly))

	want := time.Date(2023, time.November, 14, 22, 13, 20, 500_000_000, time.UTC)
	assert.True(t, want.Equal(rec.StartTime), "start %v, want %v", rec.StartTime, want)
	assert.True(t, rec.EndTime().After(rec.StartTime))
}

func TestParse_LittleEndian(t *testing.T) {
	rec, err := Parse(buildRecord(binary.LittleEndian, 10, 1, 1, b1000()))
	require.NoError(t, err)
	assert.Equal(t, binary.LittleEndian, rec.ByteOrder)
	assert.Equal(t, 2023, rec.StartTime.Year())
}

func TestParse_SampleRateBlockette(t *testing.T) {
	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], math.Float32bits(19.5))
	raw := buildRecord(binary.BigEndian, 10, 20, 1, testBlockette{typ: BlocketteSampleRate, body: body}, b1000())

	rec, err := Parse(raw)
	require.NoError(t, err)
	assert.InDelta(t, 19.5, rec.SampleRate, 1e-6)
	assert.Len(t, rec.Blockettes, 2)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("short"))
	assert.True(t, errors.Is(err, ErrNotMiniSEED))

	junk := []byte(strings.Repeat("x", 512))
	_, err = Parse(junk)
	assert.True(t, errors.Is(err, ErrNotMiniSEED))

	loop := buildRecord(binary.BigEndian, 10, 1, 1, b1000(), b1000())
	binary.BigEndian.PutUint16(loop[56+2:56+4], 48)
	_, err = Parse(loop)
	require.Error(t, err)
}

func TestNominalSampleRate(t *testing.T) {
	tests := []struct {
		factor, multiplier int16
		want               float64
	}{
		{40, 1, 40},
		{20, -2, 10},
		{-10, 1, 0.1},
		{-10, -10, 0.01},
		{0, 0, 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, nominalSampleRate(tt.factor, tt.multiplier), 1e-9,
			"factor %d multiplier %d", tt.factor, tt.multiplier)
	}
}

func TestRender(t *testing.T) {
	rec, err := Parse(buildRecord(binary.BigEndian, 412, 40, 1, b1000()))
	require.NoError(t, err)

	summary := Render(rec, 0)
	assert.Contains(t, summary, "IU_KONO_00_BHZ")
	assert.NotContains(t, summary, "\n")

	detailed := Render(rec, 2)
	assert.Contains(t, detailed, "number of samples: 412")
	assert.Contains(t, detailed, "blockette 1000")

	assert.Empty(t, Render(nil, 1))
}
