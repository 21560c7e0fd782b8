package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
)

// MaxTickSteps bounds one AdvanceTick call.
const MaxTickSteps = 10_000

// SnapshotSaver persists engine snapshots.
type SnapshotSaver interface {
	Save(ctx context.Context, snap *engine.Snapshot) error
}

// TickResult summarises an AdvanceTick call.
type TickResult struct {
	Clock      engine.Clock
	Steps      int
	Executed   []*domain.Order
	Operations []*domain.Operation
}

// SimulationService drives the simulated clock.
type SimulationService struct {
	engine *engine.Engine
	saver  SnapshotSaver
	logger *zap.Logger
}

// NewSimulationService creates a new SimulationService. saver may be nil.
func NewSimulationService(eng *engine.Engine, saver SnapshotSaver, logger *zap.Logger) *SimulationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulationService{engine: eng, saver: saver, logger: logger}
}

// AdvanceTick runs steps ticks and persists the resulting state.
func (s *SimulationService) AdvanceTick(ctx context.Context, steps int) (*TickResult, error) {
	if steps < 1 || steps > MaxTickSteps {
		return nil, &domain.ValidationError{Message: "steps must be between 1 and 10000"}
	}
	reports, err := s.engine.AdvanceN(ctx, steps)
	if err != nil {
		return nil, err
	}

	res := &TickResult{
		Clock:      s.engine.Clock(),
		Steps:      len(reports),
		Executed:   []*domain.Order{},
		Operations: []*domain.Operation{},
	}
	for _, r := range reports {
		res.Executed = append(res.Executed, r.Executed...)
		res.Operations = append(res.Operations, r.Operations...)
	}
	s.Persist(ctx)
	return res, nil
}

// Clock returns the simulated clock.
func (s *SimulationService) Clock() engine.Clock {
	return s.engine.Clock()
}

// Persist saves a snapshot when a saver is configured. Failures are logged.
func (s *SimulationService) Persist(ctx context.Context) {
	if s.saver == nil {
		return
	}
	if err := s.saver.Save(ctx, s.engine.Snapshot()); err != nil {
		s.logger.Error("snapshot save failed", zap.Error(err))
	}
}
