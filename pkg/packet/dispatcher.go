package packet

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bft-labs/dlclient/pkg/log"
	"github.com/bft-labs/dlclient/pkg/mseed"
)

// TimestampLayout is the wall-clock layout used in receipt logs:
// year, day of year, hour, minute and tenths of a second.
const TimestampLayout = "2006.002.15:04:05.0"

// RecordParser decodes and renders data payloads.
type RecordParser interface {
	Parse(raw []byte) (*mseed.Record, error)
	Render(rec *mseed.Record, detail int) string
}

// MiniSEEDParser implements RecordParser with package mseed.
type MiniSEEDParser struct{}

// Parse decodes a miniSEED record header.
func (MiniSEEDParser) Parse(raw []byte) (*mseed.Record, error) { return mseed.Parse(raw) }

// Render formats a record at the given detail level.
func (MiniSEEDParser) Render(rec *mseed.Record, detail int) string { return mseed.Render(rec, detail) }

// DispatcherConfig controls how much the dispatcher prints.
type DispatcherConfig struct {
	// Verbosity is the -v count. At 1 or more data records are rendered;
	// at 2 or more they are rendered in detail.
	Verbosity int

	// PrintPackets renders every data record in detail regardless of verbosity.
	PrintPackets bool
}

// Dispatcher routes packets to type specific handling.
type Dispatcher struct {
	logger       log.Logger
	parser       RecordParser
	printPackets bool
	verbosity    atomic.Int32
	now          func() time.Time
}

// NewDispatcher creates a dispatcher. A nil parser selects MiniSEEDParser.
func NewDispatcher(cfg DispatcherConfig, parser RecordParser, logger log.Logger) *Dispatcher {
	if parser == nil {
		parser = MiniSEEDParser{}
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	d := &Dispatcher{
		logger:       logger,
		parser:       parser,
		printPackets: cfg.PrintPackets,
		now:          time.Now,
	}
	d.SetVerbosity(cfg.Verbosity)
	return d
}

// SetVerbosity changes the verbosity used for data rendering. Safe for
// concurrent use with Dispatch.
func (d *Dispatcher) SetVerbosity(v int) {
	d.verbosity.Store(int32(v))
}

// Verbosity returns the current verbosity.
func (d *Dispatcher) Verbosity() int {
	return int(d.verbosity.Load())
}

// Timestamp formats the current local time for receipt logs.
func (d *Dispatcher) Timestamp() string {
	return d.now().Local().Format(TimestampLayout)
}

// Dispatch handles one packet. Only a data payload that fails to parse
// returns an error; unknown types are logged and ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, p Packet) error {
	ts := d.Timestamp()

	switch p.Type {
	case TypeData:
		d.logger.Debug("received packet", receiptFields(ts, p)...)

		rec, err := d.parser.Parse(p.Payload)
		if err != nil {
			return fmt.Errorf("parse %s packet %d: %w", p.StreamID, p.Sequence, err)
		}
		if v := d.Verbosity(); v > 0 || d.printPackets {
			d.logger.Info(d.parser.Render(rec, d.detail(v)), log.String("stream", p.StreamID))
		}

	case TypeKeepalive:
		d.logger.Trace("keepalive packet received", log.Int("seq", p.Sequence))

	case TypeInfo, TypeInfoTerminated:
		d.logger.Debug("received packet", receiptFields(ts, p)...)
		d.logger.Info("info response", log.String("type", p.Type.String()), log.String("payload", string(p.Payload)))

	case TypeDetection, TypeCalibration, TypeTiming, TypeMessage, TypeGeneral, TypeRequest:
		d.logger.Debug("received packet", receiptFields(ts, p)...)

	default:
		d.logger.Warn("received packet of unknown type",
			log.String("time", ts),
			log.Int("seq", p.Sequence),
			log.Int("type", int(p.Type)),
		)
	}
	return nil
}

func (d *Dispatcher) detail(verbosity int) int {
	switch {
	case verbosity >= 3:
		return 2
	case verbosity >= 2 || d.printPackets:
		return 1
	default:
		return 0
	}
}

func receiptFields(ts string, p Packet) []log.Field {
	return []log.Field{
		log.String("time", ts),
		log.Int("seq", p.Sequence),
		log.String("type", p.Type.String()),
		log.String("stream", p.StreamID),
		log.Int("size", p.Size),
	}
}
