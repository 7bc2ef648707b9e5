package transaction

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// RollbackFunc undoes one filesystem step of a package install
type RollbackFunc func() error

type step struct {
	name string
	fn   RollbackFunc
}

// Manager keeps the undo steps of an in-flight package install. Steps run
// last-in first-out on Rollback; Commit discards them.
type Manager struct {
	rollbacks []step
	mu        sync.Mutex
	logger    *zerolog.Logger
}

// NewManager creates a new transaction manager
func NewManager(logger *zerolog.Logger) *Manager {
	return &Manager{
		rollbacks: make([]step, 0),
		logger:    logger,
	}
}

// Add pushes an undo step
func (m *Manager) Add(name string, fn RollbackFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbacks = append(m.rollbacks, step{name, fn})
}

// Pending returns the number of registered undo steps
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rollbacks)
}

// Rollback executes all registered rollback functions in reverse order (LIFO)
func (m *Manager) Rollback() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.rollbacks) == 0 {
		return nil
	}

	if m.logger != nil {
		m.logger.Info().Int("steps", len(m.rollbacks)).Msg("rolling back package install")
	}

	var errs []error
	for i := len(m.rollbacks) - 1; i >= 0; i-- {
		op := m.rollbacks[i]
		if m.logger != nil {
			m.logger.Debug().Str("operation", op.name).Msg("rolling back")
		}

		if err := op.fn(); err != nil {
			errMsg := fmt.Errorf("failed to rollback '%s': %w", op.name, err)
			errs = append(errs, errMsg)
			if m.logger != nil {
				m.logger.Error().Err(err).Str("operation", op.name).Msg("rollback failed")
			}
		}
	}

	// Clear after rollback
	m.rollbacks = nil

	if len(errs) > 0 {
		return fmt.Errorf("rollback completed with errors: %w", errors.Join(errs...))
	}
	return nil
}

// Commit clears the rollback stack, confirming the transaction
func (m *Manager) Commit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollbacks = nil
}
