package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/emergency"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/telephony"
	"github.com/mindhaven/crisis-safety-backend/internal/metrics"
	"github.com/mindhaven/crisis-safety-backend/internal/service/perfmon"
)

// service implements the Service interface
type service struct {
	invoker  telephony.Invoker
	plans    SafetyPlanSource
	monitor  *perfmon.Monitor
	registry *metrics.Registry
	logger   *zap.Logger
	targets  Targets
	limiter  *rate.Limiter

	mu         sync.RWMutex
	operations map[uuid.UUID]*emergency.Operation
	contacts   map[uuid.UUID]*values.PhoneNumber
}

// NewService creates a new emergency dispatcher. The limiter paces the
// generic queue only; bypass-flagged operations never touch it.
func NewService(
	invoker telephony.Invoker,
	plans SafetyPlanSource,
	monitor *perfmon.Monitor,
	registry *metrics.Registry,
	logger *zap.Logger,
	targets Targets,
	queueRate rate.Limit,
	queueBurst int,
) Service {
	return &service{
		invoker:    invoker,
		plans:      plans,
		monitor:    monitor,
		registry:   registry,
		logger:     logger,
		targets:    targets,
		limiter:    rate.NewLimiter(queueRate, queueBurst),
		operations: make(map[uuid.UUID]*emergency.Operation),
		contacts:   make(map[uuid.UUID]*values.PhoneNumber),
	}
}

// AddOperation registers a bounded-latency emergency action
func (s *service) AddOperation(ctx context.Context, req *OperationRequest) (uuid.UUID, error) {
	if req == nil {
		return uuid.Nil, errors.NewValidationError("INVALID_REQUEST", "request cannot be nil")
	}

	op, err := emergency.NewOperation(
		req.Kind,
		req.CrisisLevel,
		req.BypassesQueue,
		req.MaxExecutionTimeMs,
		req.GuaranteedExecutionTimeMs,
	)
	if err != nil {
		return uuid.Nil, err
	}

	s.mu.Lock()
	s.operations[op.ID] = op
	if req.Contact != nil {
		s.contacts[op.ID] = req.Contact
	}
	s.mu.Unlock()

	s.logger.Info("emergency operation queued",
		zap.String("operation_id", op.ID.String()),
		zap.String("kind", op.Kind.String()),
		zap.Bool("bypasses_queue", op.BypassesQueue),
		zap.Int64("max_execution_ms", op.MaxExecutionTimeMs))

	return op.ID, nil
}

// Execute runs a registered operation. Operations flagged to bypass skip
// the queue pacing even through this path.
func (s *service) Execute(ctx context.Context, id uuid.UUID) (*Result, error) {
	op, contact, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, op, contact, op.BypassesQueue)
}

// BypassQueue runs a registered operation immediately
func (s *service) BypassQueue(ctx context.Context, id uuid.UUID) (*Result, error) {
	op, contact, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	return s.run(ctx, op, contact, true)
}

// GetOperation returns a registered operation
func (s *service) GetOperation(ctx context.Context, id uuid.UUID) (*emergency.Operation, error) {
	s.mu.RLock()
	op, ok := s.operations[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.ErrOperationNotFound
	}
	return op, nil
}

func (s *service) lookup(id uuid.UUID) (*emergency.Operation, *values.PhoneNumber, error) {
	s.mu.RLock()
	op, ok := s.operations[id]
	contact := s.contacts[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, errors.ErrOperationNotFound
	}
	return op, contact, nil
}

// run executes the operation's single side effect. The map lock is never
// held across the invocation, so queued operations cannot block a bypass.
func (s *service) run(ctx context.Context, op *emergency.Operation, contact *values.PhoneNumber, bypass bool) (*Result, error) {
	if !bypass {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, errors.NewInternalError("queue wait interrupted").WithCause(err)
		}
	}

	if err := op.BeginExecution(); err != nil {
		return nil, err
	}

	start := time.Now()

	act, err := s.resolveAction(ctx, op, contact)
	if err != nil {
		executionMs := time.Since(start).Milliseconds()
		op.Fail(executionMs)
		s.record(ctx, op, executionMs)
		return nil, errors.NewInternalError("failed to resolve emergency action").WithCause(err)
	}

	// Fire-and-forget: a failed handoff degrades to the fallback text.
	fallback := ""
	if !s.invoker.Open(ctx, act.uri) {
		fallback = act.fallback
		if s.registry != nil {
			s.registry.FallbackCounter.Add(ctx, 1)
		}
		s.logger.Warn("emergency action degraded to fallback",
			zap.String("operation_id", op.ID.String()),
			zap.String("kind", op.Kind.String()),
			zap.String("uri", act.uri))
	}

	executionMs := time.Since(start).Milliseconds()
	op.Complete(executionMs, bypass && op.BypassesQueue)
	s.record(ctx, op, executionMs)

	return &Result{
		OperationID:     op.ID,
		State:           op.State,
		ExecutionTimeMs: executionMs,
		SLACompliant:    op.Metrics.SLACompliant,
		SideEffectURI:   act.uri,
		FallbackMessage: fallback,
	}, nil
}

func (s *service) record(ctx context.Context, op *emergency.Operation, executionMs int64) {
	if s.monitor != nil {
		s.monitor.RecordExecution(ctx, op.Kind.String(), executionMs, op.MaxExecutionTimeMs)
	}
	if s.registry != nil {
		s.registry.RecordDispatch(ctx, op.Kind.String(), op.State.String(),
			time.Duration(executionMs)*time.Millisecond)
	}
}
