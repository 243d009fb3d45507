// Package session persists flow run variables across suspensions, process
// restarts, and resumed conversations. It is the durability side of the
// engine's cross-run guarantees: side-effect flags written by the engine's
// idempotency tracker survive because this service stores and reloads them.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/convoflow/engine/pkg/engine"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
	clock  func() time.Time
}

func NewService(pool *pgxpool.Pool) *Service {
	return &Service{
		repo:   NewRepository(pool),
		logger: slog.Default(),
		clock:  time.Now,
	}
}

func NewServiceWithDeps(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, clock: time.Now}
}

// WithClock overrides the time source for new contexts. Tests use this to
// pin the engine's clock variables.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Hydrate builds an ExecutionContext for a session, merging any previously
// persisted variables. A persistence failure is logged and the context is
// returned anyway; a resumed run starts with a fresh context rather than not
// starting at all.
func (s *Service) Hydrate(ctx context.Context, sessionID string) *engine.ExecutionContext {
	ec := engine.NewExecutionContextWithClock(s.clock).
		WithLogger(s.logger.With("sessionId", sessionID))
	ec.LoadSessionVariables(ctx, s.repo, sessionID)
	return ec
}

// Persist saves the durable subset of a context's variables: user-captured
// values plus the side-effect tracking namespaces. Contextual state
// (contact, message, current.*) is not persisted; it is re-derived when the
// session resumes.
//
// Callers must not treat the process as safe to restart until Persist has
// returned. A crash after a side effect but before its executed flag is
// persisted will repeat the effect on resume; the engine records the state
// but only this ordering makes the at-most-once guarantee hold.
func (s *Service) Persist(ctx context.Context, sessionID string, ec *engine.ExecutionContext) error {
	vars := ec.GetFiltered("")
	if err := s.repo.SaveVariables(ctx, sessionID, vars); err != nil {
		return errors.Wrapf(err, "persist %d variables for session %s", len(vars), sessionID)
	}
	s.logger.Debug("persisted session variables", "sessionId", sessionID, "count", len(vars))
	return nil
}

// Destroy removes everything persisted for a session, including side-effect
// flags. Only a terminated conversation should be destroyed; destroying a
// suspended one forfeits the replay protection.
func (s *Service) Destroy(ctx context.Context, sessionID string) error {
	if err := s.repo.DeleteVariables(ctx, sessionID); err != nil {
		return errors.Wrapf(err, "destroy session %s", sessionID)
	}
	return nil
}
