package crisis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	domain "github.com/mindhaven/crisis-safety-backend/internal/domain/crisis"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/emergency"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/errors"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/config"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/keyvalue"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/telephony"
	"github.com/mindhaven/crisis-safety-backend/internal/service/dispatch"
	"github.com/mindhaven/crisis-safety-backend/internal/service/perfmon"
	"github.com/mindhaven/crisis-safety-backend/internal/service/stores"
)

func newCrisisEnv(t *testing.T) (Service, keyvalue.Store, *telephony.StubInvoker) {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := zaptest.NewLogger(t)

	store, err := keyvalue.NewRedisStore(&config.RedisConfig{
		URL:         mr.Addr(),
		DialTimeout: time.Second,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc, err := NewService(store, nil, logger, Config{
		MaxExecutionTimeMs:        200,
		GuaranteedExecutionTimeMs: 100,
	})
	require.NoError(t, err)

	invoker := &telephony.StubInvoker{}
	targets := dispatch.Targets{
		Hotline:           values.MustNewPhoneNumber("988"),
		EmergencyServices: values.MustNewPhoneNumber("911"),
		TextLine:          values.MustNewPhoneNumber("741741"),
		TextLineKeyword:   "HOME",
	}
	dispatcher := dispatch.NewService(invoker, svc, perfmon.NewMonitor(logger, nil),
		nil, logger, targets, rate.Limit(100), 100)
	svc.AttachDispatcher(dispatcher)

	return svc, store, invoker
}

func TestDetectCrisis_SubThresholdCreatesNothing(t *testing.T) {
	svc, _, invoker := newCrisisEnv(t)

	// PHQ-9 score 12 with no ideation answer: moderate, no crisis.
	result, err := svc.DetectCrisis(context.Background(), domain.AssessmentPHQ9,
		[]int{1, 2, 0, 3, 1, 2, 1, 2, 0})
	require.NoError(t, err)

	assert.False(t, result.CrisisDetected)
	assert.Nil(t, result.EventID)
	assert.Equal(t, 12, result.Score)
	assert.Equal(t, domain.LevelModerate, result.Severity)
	assert.Equal(t, domain.LevelNone, result.CurrentLevel)
	assert.Empty(t, invoker.OpenedURIs())
}

func TestDetectCrisis_ThresholdScoreEscalatesAndDispatches(t *testing.T) {
	svc, store, invoker := newCrisisEnv(t)

	// PHQ-9 score 20 without the ideation answer crosses the threshold.
	result, err := svc.DetectCrisis(context.Background(), domain.AssessmentPHQ9,
		[]int{3, 3, 3, 3, 3, 3, 2, 0, 0})
	require.NoError(t, err)

	assert.True(t, result.CrisisDetected)
	require.NotNil(t, result.EventID)
	assert.Equal(t, domain.TriggerPHQ9, result.Trigger)
	assert.Equal(t, domain.LevelSevere, result.Severity)
	assert.Equal(t, domain.LevelSevere, result.CurrentLevel)
	assert.True(t, result.Escalated)

	// Severe dispatches the safety plan display.
	require.NotNil(t, result.Dispatch)
	assert.Equal(t, "app://safety-plan", result.Dispatch.SideEffectURI)
	assert.Equal(t, []string{"app://safety-plan"}, invoker.OpenedURIs())

	// The whole state persisted as one snapshot.
	var snapshot stores.CrisisStore
	require.NoError(t, store.GetJSON(context.Background(),
		stores.LiveKey(values.StoreTypeCrisis), &snapshot))
	require.NotNil(t, snapshot.State)
	assert.Equal(t, domain.LevelSevere, snapshot.State.Level)
	require.Len(t, snapshot.Events, 1)
	assert.Equal(t, []string{"safety_plan_display"}, snapshot.Events[0].InterventionsUsed)
}

func TestDetectCrisis_IdeationAnswerOverridesLowScore(t *testing.T) {
	svc, _, _ := newCrisisEnv(t)

	result, err := svc.DetectCrisis(context.Background(), domain.AssessmentPHQ9,
		[]int{0, 0, 0, 0, 0, 0, 0, 0, 1})
	require.NoError(t, err)

	assert.True(t, result.CrisisDetected)
	assert.Equal(t, domain.TriggerSuicidalIdeation, result.Trigger)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, domain.LevelSevere, result.Severity)
}

func TestDetectCrisis_GAD7Threshold(t *testing.T) {
	svc, _, _ := newCrisisEnv(t)
	ctx := context.Background()

	below, err := svc.DetectCrisis(ctx, domain.AssessmentGAD7, []int{2, 2, 2, 2, 2, 2, 2})
	require.NoError(t, err)
	assert.False(t, below.CrisisDetected)
	assert.Equal(t, 14, below.Score)

	at, err := svc.DetectCrisis(ctx, domain.AssessmentGAD7, []int{3, 2, 2, 2, 2, 2, 2})
	require.NoError(t, err)
	assert.True(t, at.CrisisDetected)
	assert.Equal(t, 15, at.Score)
	assert.Equal(t, domain.TriggerGAD7, at.Trigger)
}

func TestDetectSuicidalIdeation(t *testing.T) {
	svc, _, _ := newCrisisEnv(t)
	ctx := context.Background()

	clear, err := svc.DetectSuicidalIdeation(ctx, []int{3, 3, 3, 3, 3, 3, 3, 3, 0})
	require.NoError(t, err)
	assert.False(t, clear.CrisisDetected)

	flagged, err := svc.DetectSuicidalIdeation(ctx, []int{0, 0, 0, 0, 0, 0, 0, 0, 2})
	require.NoError(t, err)
	assert.True(t, flagged.CrisisDetected)
	assert.Equal(t, domain.LevelSevere, flagged.Severity)
}

func TestTriggerManualCrisis(t *testing.T) {
	svc, _, invoker := newCrisisEnv(t)

	result, err := svc.TriggerManualCrisis(context.Background())
	require.NoError(t, err)

	assert.True(t, result.CrisisDetected)
	assert.Equal(t, domain.LevelEmergency, result.Severity)
	assert.Equal(t, domain.LevelEmergency, result.CurrentLevel)

	// Emergency dispatches an immediate hotline dial.
	require.NotNil(t, result.Dispatch)
	assert.Equal(t, "tel:988", result.Dispatch.SideEffectURI)
	assert.Equal(t, []string{"tel:988"}, invoker.OpenedURIs())
}

func TestDetectCrisis_EscalationIsMonotonic(t *testing.T) {
	svc, _, _ := newCrisisEnv(t)
	ctx := context.Background()

	manual, err := svc.TriggerManualCrisis(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.LevelEmergency, manual.CurrentLevel)

	// A later severe detection is recorded but cannot lower the level.
	severe, err := svc.DetectCrisis(ctx, domain.AssessmentPHQ9,
		[]int{3, 3, 3, 3, 3, 3, 2, 0, 0})
	require.NoError(t, err)
	assert.True(t, severe.CrisisDetected)
	assert.False(t, severe.Escalated)
	assert.Equal(t, domain.LevelEmergency, severe.CurrentLevel)
}

func TestResolveCrisis(t *testing.T) {
	svc, store, _ := newCrisisEnv(t)
	ctx := context.Background()

	result, err := svc.TriggerManualCrisis(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.ResolveCrisis(ctx, *result.EventID, 4))

	state, err := svc.CurrentState(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.LevelNone, state.Level)
	assert.Equal(t, domain.AccessGrants{}, state.Grants)

	event, err := svc.GetEvent(ctx, *result.EventID)
	require.NoError(t, err)
	assert.True(t, event.Resolved)

	var snapshot stores.CrisisStore
	require.NoError(t, store.GetJSON(ctx, stores.LiveKey(values.StoreTypeCrisis), &snapshot))
	assert.Equal(t, domain.LevelNone, snapshot.State.Level)

	// Unknown events and double resolution are refused.
	assert.True(t, errors.IsType(svc.ResolveCrisis(ctx, uuid.New(), 3), errors.ErrorTypeNotFound))
	assert.Error(t, svc.ResolveCrisis(ctx, *result.EventID, 3))
}

func TestCallHotline(t *testing.T) {
	svc, _, invoker := newCrisisEnv(t)

	result, err := svc.CallHotline(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tel:988", result.SideEffectURI)
	assert.Equal(t, emergency.StateBypassed, result.State)
	assert.True(t, result.SLACompliant)
	assert.Equal(t, []string{"tel:988"}, invoker.OpenedURIs())
}

func TestSafetyPlanAndContacts_PersistAndHydrate(t *testing.T) {
	svc, store, _ := newCrisisEnv(t)
	ctx := context.Background()

	plan := emergency.NewSafetyPlan(
		[]string{"isolation"},
		[]string{"box breathing"},
		[]emergency.Contact{{Name: "Jordan", Phone: values.MustNewPhoneNumber("+14155551234")}},
	)
	require.NoError(t, svc.UpdateSafetyPlan(ctx, plan))
	require.NoError(t, svc.SetEmergencyContacts(ctx, []emergency.Contact{
		{Name: "Sam", Phone: values.MustNewPhoneNumber("988")},
	}))

	got, err := svc.ActivePlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, got.ID)

	// A fresh service over the same store hydrates the persisted state.
	logger := zaptest.NewLogger(t)
	rehydrated, err := NewService(store, nil, logger, Config{
		MaxExecutionTimeMs:        200,
		GuaranteedExecutionTimeMs: 100,
	})
	require.NoError(t, err)

	hydratedPlan, err := rehydrated.ActivePlan(ctx)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, hydratedPlan.ID)
}

func TestActivePlan_NoneConfigured(t *testing.T) {
	svc, _, _ := newCrisisEnv(t)

	_, err := svc.ActivePlan(context.Background())
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
