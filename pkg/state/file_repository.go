package state

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/bft-labs/dlclient/pkg/log"
	"github.com/bft-labs/dlclient/pkg/session"
)

// FileRepository implements Repository using a flat text checkpoint file.
type FileRepository struct {
	path   string
	logger log.Logger
}

// NewFileRepository creates a new FileRepository for the given file path.
// A nil logger discards all messages.
func NewFileRepository(path string, logger log.Logger) *FileRepository {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &FileRepository{path: path, logger: logger}
}

// Save truncates the checkpoint file and writes a single record for desc.
// The write is not retried. Addresses that Recover could never match are
// rejected before the file is touched.
func (r *FileRepository) Save(ctx context.Context, desc *session.Descriptor) error {
	if err := session.ValidateAddress(desc.Address); err != nil {
		r.logger.Error("refusing to save unrecoverable state", log.String("path", r.path), log.Err(err))
		return fmt.Errorf("save state: %w", err)
	}

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		r.logger.Error("cannot open state file for writing", log.String("path", r.path), log.Err(err))
		return fmt.Errorf("open state file: %w", err)
	}

	r.logger.Debug("saving connection state to state file",
		log.String("path", r.path),
		log.String("address", desc.Address),
		log.Int64("packet_id", desc.PacketID),
	)

	line := Record{Address: desc.Address, PacketID: desc.PacketID, PacketTime: desc.PacketTime}.Format()
	n, err := f.WriteString(line)
	if err == nil && n != len(line) {
		err = io.ErrShortWrite
	}
	if err != nil {
		_ = f.Close()
		r.logger.Error("cannot write to state file", log.String("path", r.path), log.Err(err))
		return fmt.Errorf("write state file: %w", err)
	}

	if err := f.Close(); err != nil {
		r.logger.Error("cannot close state file", log.String("path", r.path), log.Err(err))
		return fmt.Errorf("close state file: %w", err)
	}
	return nil
}

// Recover scans the checkpoint file for the first record matching
// desc.Address and copies its position into desc.
func (r *FileRepository) Recover(ctx context.Context, desc *session.Descriptor) (res RecoverResult, err error) {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Info("could not find state file", log.String("path", r.path))
			return FileNotFound, nil
		}
		r.logger.Error("could not open state file", log.String("path", r.path), log.Err(err))
		return FileNotFound, fmt.Errorf("open state file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			r.logger.Error("could not close state file", log.String("path", r.path), log.Err(cerr))
			if err == nil {
				err = fmt.Errorf("close state file: %w", cerr)
			}
		}
	}()

	r.logger.Debug("recovering connection state from state file", log.String("path", r.path))

	sc := newRecordScanner(f)
	for sc.Next() {
		line := sc.Result()
		if line.Blank {
			continue
		}
		if line.Err != nil {
			r.logger.Warn("could not parse line of state file",
				log.Int("line", line.Line),
				log.String("path", r.path),
				log.Err(line.Err),
			)
			continue
		}
		if line.Record.Address != desc.Address {
			continue
		}

		desc.Advance(line.Record.PacketID, line.Record.PacketTime)
		r.logger.Info("recovered connection state",
			log.String("address", desc.Address),
			log.Int64("packet_id", desc.PacketID),
			log.Int64("packet_time", desc.PacketTime),
		)
		return Found, nil
	}
	if err := sc.Err(); err != nil {
		r.logger.Error("could not read state file", log.String("path", r.path), log.Err(err))
		return AddressNotFound, fmt.Errorf("read state file: %w", err)
	}

	r.logger.Info("server address not found in state file", log.String("address", desc.Address))
	return AddressNotFound, nil
}
