package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/crisis"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/emergency"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
	"github.com/mindhaven/crisis-safety-backend/internal/infrastructure/telephony"
	"github.com/mindhaven/crisis-safety-backend/internal/service/perfmon"
)

type stubPlanSource struct {
	plan *emergency.SafetyPlan
}

func (s *stubPlanSource) ActivePlan(ctx context.Context) (*emergency.SafetyPlan, error) {
	return s.plan, nil
}

func testTargets() Targets {
	return Targets{
		Hotline:           values.MustNewPhoneNumber("988"),
		EmergencyServices: values.MustNewPhoneNumber("911"),
		TextLine:          values.MustNewPhoneNumber("741741"),
		TextLineKeyword:   "HOME",
	}
}

func newTestService(t *testing.T, invoker telephony.Invoker, plans SafetyPlanSource) (Service, *perfmon.Monitor) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	monitor := perfmon.NewMonitor(logger, nil)
	svc := NewService(invoker, plans, monitor, nil, logger, testTargets(), rate.Limit(100), 100)
	return svc, monitor
}

func TestService_ExecuteHotlineDial(t *testing.T) {
	invoker := &telephony.StubInvoker{}
	svc, _ := newTestService(t, invoker, nil)
	ctx := context.Background()

	id, err := svc.AddOperation(ctx, &OperationRequest{
		Kind:                      emergency.ActionHotlineDial,
		CrisisLevel:               crisis.LevelSevere,
		MaxExecutionTimeMs:        200,
		GuaranteedExecutionTimeMs: 100,
	})
	require.NoError(t, err)

	result, err := svc.Execute(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, emergency.StateCompleted, result.State)
	assert.True(t, result.SLACompliant)
	assert.Equal(t, "tel:988", result.SideEffectURI)
	assert.Empty(t, result.FallbackMessage)
	assert.Equal(t, []string{"tel:988"}, invoker.OpenedURIs())
}

func TestService_SlowExecutionCompletesWithViolation(t *testing.T) {
	// A 250ms handoff against a 200ms hard deadline must still complete;
	// the miss is recorded as a violation, not an error.
	invoker := &telephony.StubInvoker{Delay: 250 * time.Millisecond}
	svc, monitor := newTestService(t, invoker, nil)
	ctx := context.Background()

	id, err := svc.AddOperation(ctx, &OperationRequest{
		Kind:                      emergency.ActionHotlineDial,
		CrisisLevel:               crisis.LevelEmergency,
		MaxExecutionTimeMs:        200,
		GuaranteedExecutionTimeMs: 100,
	})
	require.NoError(t, err)

	result, err := svc.Execute(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, emergency.StateCompleted, result.State)
	assert.False(t, result.SLACompliant)
	assert.GreaterOrEqual(t, result.ExecutionTimeMs, int64(250))
	assert.Equal(t, int64(1), monitor.ViolationCount())
}

func TestService_BypassQueue(t *testing.T) {
	invoker := &telephony.StubInvoker{}
	svc, _ := newTestService(t, invoker, nil)
	ctx := context.Background()

	id, err := svc.AddOperation(ctx, &OperationRequest{
		Kind:                      emergency.ActionSafetyPlanDisplay,
		CrisisLevel:               crisis.LevelSevere,
		BypassesQueue:             true,
		MaxExecutionTimeMs:        200,
		GuaranteedExecutionTimeMs: 100,
	})
	require.NoError(t, err)

	result, err := svc.BypassQueue(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, emergency.StateBypassed, result.State)
	assert.Equal(t, "app://safety-plan", result.SideEffectURI)
}

func TestService_FallbackOnFailedHandoff(t *testing.T) {
	invoker := &telephony.StubInvoker{FailAll: true}
	svc, _ := newTestService(t, invoker, nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		kind     emergency.ActionKind
		contains string
	}{
		{name: "hotline keeps literal number", kind: emergency.ActionHotlineDial, contains: "988"},
		{name: "emergency services keeps literal number", kind: emergency.ActionEmergencyServicesDial, contains: "911"},
		{name: "text line keeps keyword and number", kind: emergency.ActionTextLinePrompt, contains: "HOME"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := svc.AddOperation(ctx, &OperationRequest{
				Kind:                      tt.kind,
				CrisisLevel:               crisis.LevelEmergency,
				MaxExecutionTimeMs:        200,
				GuaranteedExecutionTimeMs: 100,
			})
			require.NoError(t, err)

			result, err := svc.Execute(ctx, id)
			require.NoError(t, err)

			// A failed handoff still completes, with local fallback text.
			assert.Equal(t, emergency.StateCompleted, result.State)
			assert.Contains(t, result.FallbackMessage, tt.contains)
		})
	}
}

func TestService_PersonalContactFallsBackToPlan(t *testing.T) {
	invoker := &telephony.StubInvoker{}
	plan := emergency.NewSafetyPlan(nil, nil, []emergency.Contact{
		{Name: "Jordan", Phone: values.MustNewPhoneNumber("+14155551234")},
	})
	svc, _ := newTestService(t, invoker, &stubPlanSource{plan: plan})
	ctx := context.Background()

	id, err := svc.AddOperation(ctx, &OperationRequest{
		Kind:                      emergency.ActionPersonalContactDial,
		CrisisLevel:               crisis.LevelSevere,
		MaxExecutionTimeMs:        200,
		GuaranteedExecutionTimeMs: 100,
	})
	require.NoError(t, err)

	result, err := svc.Execute(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "tel:+14155551234", result.SideEffectURI)
}

func TestService_ExplicitContactOverridesPlan(t *testing.T) {
	invoker := &telephony.StubInvoker{}
	svc, _ := newTestService(t, invoker, &stubPlanSource{})
	ctx := context.Background()

	contact := values.MustNewPhoneNumber("+16505559876")
	id, err := svc.AddOperation(ctx, &OperationRequest{
		Kind:                      emergency.ActionPersonalContactDial,
		CrisisLevel:               crisis.LevelSevere,
		MaxExecutionTimeMs:        200,
		GuaranteedExecutionTimeMs: 100,
		Contact:                   &contact,
	})
	require.NoError(t, err)

	result, err := svc.Execute(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "tel:+16505559876", result.SideEffectURI)
}

func TestService_UnknownOperation(t *testing.T) {
	svc, _ := newTestService(t, &telephony.StubInvoker{}, nil)

	_, err := svc.Execute(context.Background(), uuid.New())
	assert.Error(t, err)

	_, err = svc.GetOperation(context.Background(), uuid.New())
	assert.Error(t, err)
}

func TestService_CannotExecuteTwice(t *testing.T) {
	svc, _ := newTestService(t, &telephony.StubInvoker{}, nil)
	ctx := context.Background()

	id, err := svc.AddOperation(ctx, &OperationRequest{
		Kind:                      emergency.ActionHotlineDial,
		CrisisLevel:               crisis.LevelSevere,
		MaxExecutionTimeMs:        200,
		GuaranteedExecutionTimeMs: 100,
	})
	require.NoError(t, err)

	_, err = svc.Execute(ctx, id)
	require.NoError(t, err)

	// Side effects cannot be re-run.
	_, err = svc.Execute(ctx, id)
	assert.Error(t, err)
}
