package packet

import "github.com/bft-labs/dlclient/pkg/mseed"

// Classify derives a packet type from a miniSEED payload. Records that carry
// samples at a nominal rate are data; otherwise the blockette chain decides,
// and sampled records without a rate are log messages. Payloads that do not
// parse are general packets.
func Classify(payload []byte) Type {
	rec, err := mseed.Parse(payload)
	if err != nil {
		return TypeGeneral
	}
	return ClassifyRecord(rec)
}

// ClassifyRecord classifies an already parsed record.
func ClassifyRecord(rec *mseed.Record) Type {
	if rec.NumSamples > 0 && rec.NominalRate() {
		return TypeData
	}
	for _, b := range rec.Blockettes {
		switch b.Type {
		case mseed.BlocketteMurdock, mseed.BlocketteDetection:
			return TypeDetection
		case mseed.BlocketteStepCal, mseed.BlocketteSineCal, mseed.BlocketteRandomCal, mseed.BlocketteGenericCal:
			return TypeCalibration
		case mseed.BlocketteTiming:
			return TypeTiming
		}
	}
	if rec.NumSamples > 0 {
		return TypeMessage
	}
	return TypeGeneral
}
