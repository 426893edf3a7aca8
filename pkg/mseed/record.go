package mseed

import (
	"encoding/binary"
	"time"
)

// Blockette types the client cares about.
const (
	BlocketteSampleRate   = 100
	BlocketteMurdock      = 200
	BlocketteDetection    = 201
	BlocketteStepCal      = 300
	BlocketteSineCal      = 310
	BlocketteRandomCal    = 320
	BlocketteGenericCal   = 390
	BlocketteTiming       = 500
	BlocketteDataOnly     = 1000
	BlocketteDataExt      = 1001
	fixedHeaderLength     = 48
	blocketteHeaderLength = 4
)

// Blockette is one entry of the blockette chain.
type Blockette struct {
	Type   uint16
	Offset uint16
}

// Record is a parsed miniSEED record header.
type Record struct {
	SequenceNumber string
	Quality        byte
	Network        string
	Station        string
	Location       string
	Channel        string
	StartTime      time.Time
	NumSamples     int
	SampleRate     float64
	DataOffset     int
	Encoding       int
	RecordLength   int
	ByteOrder      binary.ByteOrder
	Blockettes     []Blockette

	rateFactor     int16
	rateMultiplier int16
}

// SourceName returns NET_STA_LOC_CHAN.
func (r *Record) SourceName() string {
	return r.Network + "_" + r.Station + "_" + r.Location + "_" + r.Channel
}

// HasBlockette reports whether the chain contains the given type.
func (r *Record) HasBlockette(typ uint16) bool {
	for _, b := range r.Blockettes {
		if b.Type == typ {
			return true
		}
	}
	return false
}

// NominalRate reports whether the fixed header carries a non-zero sample
// rate factor.
func (r *Record) NominalRate() bool {
	return r.rateFactor != 0
}

// EndTime returns the time of the last sample.
func (r *Record) EndTime() time.Time {
	if r.SampleRate <= 0 || r.NumSamples <= 1 {
		return r.StartTime
	}
	span := float64(r.NumSamples-1) / r.SampleRate
	return r.StartTime.Add(time.Duration(span * float64(time.Second)))
}
