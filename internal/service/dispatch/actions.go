package dispatch

import (
	"context"
	"fmt"

	"github.com/mindhaven/crisis-safety-backend/internal/domain/emergency"
	"github.com/mindhaven/crisis-safety-backend/internal/domain/values"
)

// action is one resolved side effect: the deep link to open and the
// fallback text rendered locally if the handoff fails. The fallback always
// carries the literal number or instructions, never a bare error.
type action struct {
	uri      string
	fallback string
}

// Targets carries the configured dial targets for the built-in actions
type Targets struct {
	Hotline           values.PhoneNumber
	EmergencyServices values.PhoneNumber
	TextLine          values.PhoneNumber
	TextLineKeyword   string
}

// resolveAction maps an operation to its single external side effect
func (s *service) resolveAction(ctx context.Context, op *emergency.Operation, contact *values.PhoneNumber) (action, error) {
	switch op.Kind {
	case emergency.ActionHotlineDial:
		return action{
			uri: s.targets.Hotline.DialURI(),
			fallback: fmt.Sprintf("Call the crisis hotline now: %s. Free, confidential, 24/7.",
				s.targets.Hotline),
		}, nil

	case emergency.ActionEmergencyServicesDial:
		return action{
			uri: s.targets.EmergencyServices.DialURI(),
			fallback: fmt.Sprintf("Call emergency services now: %s.",
				s.targets.EmergencyServices),
		}, nil

	case emergency.ActionTextLinePrompt:
		return action{
			uri: s.targets.TextLine.SMSURI(),
			fallback: fmt.Sprintf("Text %s to %s to reach a crisis counselor.",
				s.targets.TextLineKeyword, s.targets.TextLine),
		}, nil

	case emergency.ActionPersonalContactDial:
		target := contact
		if target == nil || target.IsEmpty() {
			plan, err := s.activePlan(ctx)
			if err != nil {
				return action{}, err
			}
			if plan == nil {
				return action{}, fmt.Errorf("no active safety plan")
			}
			primary, err := plan.PrimaryContact()
			if err != nil {
				return action{}, err
			}
			target = &primary.Phone
		}
		return action{
			uri:      target.DialURI(),
			fallback: fmt.Sprintf("Call your trusted contact: %s.", target),
		}, nil

	case emergency.ActionSafetyPlanDisplay:
		return action{
			uri: "app://safety-plan",
			fallback: fmt.Sprintf("Open your safety plan. If you cannot, call the crisis hotline: %s.",
				s.targets.Hotline),
		}, nil

	case emergency.ActionCopingStrategyDisplay:
		return action{
			uri: "app://coping-strategies",
			fallback: "Try a grounding exercise: breathe in for 4, hold for 4, out for 4.",
		}, nil
	}

	return action{}, fmt.Errorf("no side effect mapped for action %s", op.Kind)
}

func (s *service) activePlan(ctx context.Context) (*emergency.SafetyPlan, error) {
	if s.plans == nil {
		return nil, fmt.Errorf("no safety plan source configured")
	}
	return s.plans.ActivePlan(ctx)
}
