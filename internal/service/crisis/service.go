package crisis

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/crisis"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/emergency"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/keyvalue"
	"github.com/mindhaven/crisis-safety-backend/internal/metrics"
	"github.com/mindhaven/crisis-safety-backend/internal/service/dispatch"
	"github.com/mindhaven/crisis-safety-backend/internal/service/stores"
)

// Config carries the execution deadlines handed to dispatched operations
type Config struct {
	MaxExecutionTimeMs        int64
	GuaranteedExecutionTimeMs int64
}

// service implements the Service interface. It is the single writer for the
// state machine and the event log; the mutex makes every detection an
// atomic check-escalate-persist sequence.
type service struct {
	store      keyvalue.Store
	dispatcher dispatch.Service
	registry   *metrics.Registry
	logger     *zap.Logger
	cfg        Config

	mu       sync.Mutex
	state    *crisis.StateMachine
	events   map[uuid.UUID]*crisis.Event
	ordered  []*crisis.Event
	contacts []emergency.Contact
	plan     *emergency.SafetyPlan
}

// NewService creates the crisis service, hydrating prior state from the
// live store when present. The dispatcher is attached separately because it
// needs this service as its safety plan source.
func NewService(
	store keyvalue.Store,
	registry *metrics.Registry,
	logger *zap.Logger,
	cfg Config,
) (Service, error) {
	s := &service{
		store:    store,
		registry: registry,
		logger:   logger,
		cfg:      cfg,
		state:    crisis.NewStateMachine(),
		events:   make(map[uuid.UUID]*crisis.Event),
	}

	var snapshot stores.CrisisStore
	err := store.GetJSON(context.Background(), stores.LiveKey(values.StoreTypeCrisis), &snapshot)
	switch {
	case err == nil:
		if snapshot.State != nil {
			s.state = snapshot.State
		}
		for _, event := range snapshot.Events {
			s.events[event.ID] = event
			s.ordered = append(s.ordered, event)
		}
		s.contacts = snapshot.EmergencyContacts
		s.plan = snapshot.SafetyPlan
	case keyvalue.IsNotFound(err):
		// first run, nothing persisted yet
	default:
		return nil, errors.NewInternalError("failed to hydrate crisis store").WithCause(err)
	}

	return s, nil
}

// AttachDispatcher binds the emergency dispatcher after construction
func (s *service) AttachDispatcher(d dispatch.Service) {
	s.mu.Lock()
	s.dispatcher = d
	s.mu.Unlock()
}

// DetectCrisis scores an assessment and raises a crisis when the clinical
// thresholds or the ideation answer demand it. A sub-threshold result
// reports the computed severity without creating any event.
func (s *service) DetectCrisis(ctx context.Context, assessmentType crisis.AssessmentType, answers []int) (*DetectionResult, error) {
	score, err := crisis.Score(assessmentType, answers)
	if err != nil {
		return nil, err
	}

	ideation := assessmentType == crisis.AssessmentPHQ9 && crisis.HasSuicidalIdeation(assessmentType, answers)

	trigger := crisis.TriggerGAD7
	if assessmentType == crisis.AssessmentPHQ9 {
		trigger = crisis.TriggerPHQ9
	}
	if ideation {
		trigger = crisis.TriggerSuicidalIdeation
	}

	if !crisis.CrisisRequired(assessmentType, score) && !ideation {
		s.mu.Lock()
		level := s.state.Level
		s.mu.Unlock()
		return &DetectionResult{
			Score:        score,
			Severity:     crisis.SeverityForScore(assessmentType, score),
			CurrentLevel: level,
		}, nil
	}

	return s.detect(ctx, trigger, &crisis.AssessmentContext{
		Type:             assessmentType,
		Score:            score,
		SuicidalIdeation: ideation,
	})
}

// DetectSuicidalIdeation checks the PHQ-9 ideation answer in isolation
func (s *service) DetectSuicidalIdeation(ctx context.Context, answers []int) (*DetectionResult, error) {
	score, err := crisis.Score(crisis.AssessmentPHQ9, answers)
	if err != nil {
		return nil, err
	}

	if !crisis.HasSuicidalIdeation(crisis.AssessmentPHQ9, answers) {
		s.mu.Lock()
		level := s.state.Level
		s.mu.Unlock()
		return &DetectionResult{
			Score:        score,
			Severity:     crisis.SeverityForScore(crisis.AssessmentPHQ9, score),
			CurrentLevel: level,
		}, nil
	}

	return s.detect(ctx, crisis.TriggerSuicidalIdeation, &crisis.AssessmentContext{
		Type:             crisis.AssessmentPHQ9,
		Score:            score,
		SuicidalIdeation: true,
	})
}

// TriggerManualCrisis raises an emergency-level crisis from a user action
func (s *service) TriggerManualCrisis(ctx context.Context) (*DetectionResult, error) {
	return s.detect(ctx, crisis.TriggerManual, nil)
}

// detect creates the event, escalates, persists, and dispatches. Severity
// is fixed by the event constructor; the state machine only ever moves up
// here. On a persistence failure the in-memory state is kept so the caller
// can retry without losing the detection.
func (s *service) detect(ctx context.Context, trigger crisis.Trigger, assessment *crisis.AssessmentContext) (*DetectionResult, error) {
	event, err := crisis.NewEvent(trigger, assessment)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	from := s.state.Level
	escalated := s.state.EscalateAt(event.Severity, trigger, event.TriggeredAt)
	s.events[event.ID] = event
	s.ordered = append(s.ordered, event)
	level := s.state.Level
	persistErr := s.persistLocked(ctx)
	s.mu.Unlock()

	if s.registry != nil {
		s.registry.RecordCrisisDetection(ctx, trigger.String(), event.Severity.String())
		if escalated {
			s.registry.RecordEscalation(ctx, from.String(), level.String())
		}
	}

	s.logger.Info("crisis detected",
		zap.String("event_id", event.ID.String()),
		zap.String("trigger", trigger.String()),
		zap.String("severity", event.Severity.String()),
		zap.String("level", level.String()),
		zap.Bool("escalated", escalated))

	if persistErr != nil {
		// State stays in memory for retry; the detection itself stands.
		s.logger.Error("failed to persist crisis snapshot",
			zap.String("event_id", event.ID.String()),
			zap.Error(persistErr))
		return nil, persistErr
	}

	result := &DetectionResult{
		CrisisDetected: true,
		EventID:        &event.ID,
		Trigger:        trigger,
		Score:          eventScore(event),
		Severity:       event.Severity,
		CurrentLevel:   level,
		Escalated:      escalated,
	}

	if event.Severity.GrantsEmergencyAccess() {
		result.Dispatch = s.dispatchFor(ctx, event)
	}

	return result, nil
}

// dispatchFor runs the immediate emergency action matching the event's
// severity. A dispatch failure is logged, never allowed to mask the
// detection itself.
func (s *service) dispatchFor(ctx context.Context, event *crisis.Event) *dispatch.Result {
	if s.dispatcher == nil {
		return nil
	}

	kind := emergency.ActionSafetyPlanDisplay
	if event.Severity == crisis.LevelEmergency {
		kind = emergency.ActionHotlineDial
	}

	opID, err := s.dispatcher.AddOperation(ctx, &dispatch.OperationRequest{
		Kind:                      kind,
		CrisisLevel:               event.Severity,
		BypassesQueue:             true,
		MaxExecutionTimeMs:        s.cfg.MaxExecutionTimeMs,
		GuaranteedExecutionTimeMs: s.cfg.GuaranteedExecutionTimeMs,
	})
	if err != nil {
		s.logger.Error("failed to queue emergency operation",
			zap.String("event_id", event.ID.String()),
			zap.String("kind", kind.String()),
			zap.Error(err))
		return nil
	}

	result, err := s.dispatcher.BypassQueue(ctx, opID)
	if err != nil {
		s.logger.Error("emergency operation failed",
			zap.String("event_id", event.ID.String()),
			zap.String("kind", kind.String()),
			zap.Error(err))
		return nil
	}

	s.mu.Lock()
	event.AddIntervention(kind.String())
	event.RecordResponseTime(time.Duration(result.ExecutionTimeMs) * time.Millisecond)
	if err := s.persistLocked(ctx); err != nil {
		s.logger.Warn("failed to persist intervention record", zap.Error(err))
	}
	s.mu.Unlock()

	return result
}

// ResolveCrisis closes the event and de-escalates to none
func (s *service) ResolveCrisis(ctx context.Context, eventID uuid.UUID, effectiveness int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return errors.ErrCrisisNotFound
	}

	if err := event.Resolve(effectiveness); err != nil {
		return err
	}
	s.state.Resolve()

	if err := s.persistLocked(ctx); err != nil {
		return err
	}

	s.logger.Info("crisis resolved",
		zap.String("event_id", eventID.String()),
		zap.Int("effectiveness", effectiveness))
	return nil
}

// CallHotline dispatches an immediate hotline dial
func (s *service) CallHotline(ctx context.Context) (*dispatch.Result, error) {
	s.mu.Lock()
	dispatcher := s.dispatcher
	level := s.state.Level
	s.mu.Unlock()

	if dispatcher == nil {
		return nil, errors.NewInternalError("no dispatcher attached")
	}

	opID, err := dispatcher.AddOperation(ctx, &dispatch.OperationRequest{
		Kind:                      emergency.ActionHotlineDial,
		CrisisLevel:               level,
		BypassesQueue:             true,
		MaxExecutionTimeMs:        s.cfg.MaxExecutionTimeMs,
		GuaranteedExecutionTimeMs: s.cfg.GuaranteedExecutionTimeMs,
	})
	if err != nil {
		return nil, err
	}

	return dispatcher.BypassQueue(ctx, opID)
}

// CurrentState returns a copy of the state machine
func (s *service) CurrentState(ctx context.Context) (crisis.StateMachine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *s.state
	copied.History = append([]crisis.EscalationRecord(nil), s.state.History...)
	return copied, nil
}

// GetEvent returns a crisis event by ID
func (s *service) GetEvent(ctx context.Context, eventID uuid.UUID) (*crisis.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.events[eventID]
	if !ok {
		return nil, errors.ErrCrisisNotFound
	}
	return event, nil
}

// UpdateSafetyPlan replaces the active plan, deactivating the prior one
func (s *service) UpdateSafetyPlan(ctx context.Context, plan *emergency.SafetyPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.plan != nil {
		s.plan.Deactivate()
	}
	s.plan = plan
	return s.persistLocked(ctx)
}

// SetEmergencyContacts replaces the stored emergency contacts
func (s *service) SetEmergencyContacts(ctx context.Context, contacts []emergency.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contacts = contacts
	return s.persistLocked(ctx)
}

// ActivePlan implements dispatch.SafetyPlanSource
func (s *service) ActivePlan(ctx context.Context) (*emergency.SafetyPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.plan == nil || !s.plan.Active {
		return nil, errors.NewNotFoundError("active safety plan")
	}
	return s.plan, nil
}

// persistLocked writes the whole crisis store as one snapshot. Caller holds
// the mutex.
func (s *service) persistLocked(ctx context.Context) error {
	snapshot := stores.CrisisStore{
		State:             s.state,
		Events:            s.ordered,
		EmergencyContacts: s.contacts,
		SafetyPlan:        s.plan,
	}

	if err := s.store.SetJSON(ctx, stores.LiveKey(values.StoreTypeCrisis), snapshot); err != nil {
		return errors.NewInternalError("failed to persist crisis store").WithCause(err)
	}
	return nil
}

func eventScore(event *crisis.Event) int {
	if event.Assessment == nil {
		return 0
	}
	return event.Assessment.Score
}
