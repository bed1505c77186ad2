package storage

import (
	"errors"

	"github.com/cuemby/olrunner/pkg/types"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// Store persists the history of orchestrated server runs
type Store interface {
	// Sessions
	SaveSession(session *types.Session) error
	GetSession(id string) (*types.Session, error)
	ListSessions() ([]*types.Session, error)
	DeleteSession(id string) error

	// Utility
	Close() error
}
