package state

import (
	"context"

	"github.com/bft-labs/dlclient/pkg/session"
)

// Repository handles checkpoint persistence for session resumption.
type Repository interface {
	// Recover looks up the descriptor's address and, when found, copies the
	// stored position into the descriptor. A missing store is reported as
	// FileNotFound with a nil error. Returns an error only for actual read
	// failures.
	Recover(ctx context.Context, desc *session.Descriptor) (RecoverResult, error)

	// Save persists the descriptor's address and position.
	Save(ctx context.Context, desc *session.Descriptor) error
}
