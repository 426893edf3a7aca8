package mseed

import (
	"fmt"
	"strings"
)

const timeLayout = "2006,002,15:04:05.000000"

// Render formats a record. Detail 0 gives a one line summary, 1 adds the
// header fields, and 2 or more adds the blockette chain.
func Render(rec *Record, detail int) string {
	if rec == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s, %s, %c, %d, %d samples, %g Hz, %s",
		rec.SourceName(), rec.SequenceNumber, rec.Quality, rec.RecordLength,
		rec.NumSamples, rec.SampleRate, rec.StartTime.Format(timeLayout))
	if detail <= 0 {
		return b.String()
	}

	fmt.Fprintf(&b, "\n          start time: %s", rec.StartTime.Format(timeLayout))
	fmt.Fprintf(&b, "\n            end time: %s", rec.EndTime().Format(timeLayout))
	fmt.Fprintf(&b, "\n   number of samples: %d", rec.NumSamples)
	fmt.Fprintf(&b, "\n    sample rate (Hz): %g", rec.SampleRate)
	fmt.Fprintf(&b, "\n         data offset: %d", rec.DataOffset)
	if rec.Encoding >= 0 {
		fmt.Fprintf(&b, "\n            encoding: %d", rec.Encoding)
	}
	fmt.Fprintf(&b, "\nnumber of blockettes: %d", len(rec.Blockettes))

	if detail >= 2 {
		for _, bl := range rec.Blockettes {
			fmt.Fprintf(&b, "\n       blockette %4d at offset %d", bl.Type, bl.Offset)
		}
	}
	return b.String()
}
