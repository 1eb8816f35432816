package lifecycle

import (
	"testing"
	"time"

	"visatrack/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []model.LifecycleStatus{
	model.StatusDocumentsInProgress,
	model.StatusReadyToSubmit,
	model.StatusSubmittedWaiting,
	model.StatusUnderReview,
	model.StatusAdditionalDocsRequested,
	model.StatusBiometricScheduled,
	model.StatusInterviewScheduled,
	model.StatusDecisionPending,
	model.StatusApproved,
	model.StatusRejected,
	model.StatusWithdrawn,
}

func fullPayload() Payload {
	now := time.Now()
	score := 100
	method := "online_portal"
	decision := model.DecisionApproved
	return Payload{
		CompletionScore:      &score,
		SubmittedAt:          &now,
		SubmissionMethod:     &method,
		ExpectedDecisionDate: &now,
		DecisionAt:           &now,
		DecisionType:         &decision,
	}
}

func TestValidate_TerminalStatusesRejectEverything(t *testing.T) {
	terminals := []model.LifecycleStatus{model.StatusApproved, model.StatusRejected, model.StatusWithdrawn}

	for _, from := range terminals {
		for _, to := range allStatuses {
			err := Validate(from, to, fullPayload())
			require.Error(t, err, "expected %s -> %s to be rejected", from, to)

			var ruleErr *RuleError
			require.ErrorAs(t, err, &ruleErr)
			assert.Equal(t, KindInvalidTransition, ruleErr.Kind)
		}
	}
}

func TestValidate_SelfTransitionAlwaysRejected(t *testing.T) {
	for _, s := range allStatuses {
		err := Validate(s, s, fullPayload())
		assert.Error(t, err, "self-transition %s should be rejected", s)
	}
}

func TestValidate_ReadyToSubmitRequiresFullScore(t *testing.T) {
	score := 99
	err := Validate(model.StatusDocumentsInProgress, model.StatusReadyToSubmit, Payload{CompletionScore: &score})
	require.Error(t, err)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, KindBusinessRule, ruleErr.Kind)
	assert.Equal(t, "completionScore", ruleErr.Field)

	score = 100
	err = Validate(model.StatusDocumentsInProgress, model.StatusReadyToSubmit, Payload{CompletionScore: &score})
	assert.NoError(t, err)
}

func TestValidate_ReadyToSubmitRequiresScorePresent(t *testing.T) {
	err := Validate(model.StatusDocumentsInProgress, model.StatusReadyToSubmit, Payload{})
	require.Error(t, err)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, KindMissingField, ruleErr.Kind)
	assert.EqualError(t, err, "missing required field: completionScore")
}

func TestValidate_SubmittedWaitingRequiresSubmissionData(t *testing.T) {
	score := 100
	err := Validate(model.StatusReadyToSubmit, model.StatusSubmittedWaiting, Payload{CompletionScore: &score})
	require.Error(t, err)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, KindMissingField, ruleErr.Kind)

	now := time.Now()
	method := "in_person"
	err = Validate(model.StatusReadyToSubmit, model.StatusSubmittedWaiting, Payload{
		SubmittedAt:      &now,
		SubmissionMethod: &method,
	})
	assert.NoError(t, err)
}

func TestValidate_UnderReviewNeedsNoExtraFields(t *testing.T) {
	// submittedAt is already guaranteed by SUBMITTED_WAITING, so the
	// payload may be empty.
	err := Validate(model.StatusSubmittedWaiting, model.StatusUnderReview, Payload{})
	assert.NoError(t, err)
}

func TestValidate_SkippingSubmissionIsRejected(t *testing.T) {
	err := Validate(model.StatusDocumentsInProgress, model.StatusSubmittedWaiting, fullPayload())
	require.Error(t, err)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, KindInvalidTransition, ruleErr.Kind)
	assert.EqualError(t, err, "cannot transition from DOCUMENTS_IN_PROGRESS to SUBMITTED_WAITING")
}

func TestValidate_DecisionRequiresDateAndType(t *testing.T) {
	err := Validate(model.StatusDecisionPending, model.StatusApproved, Payload{})
	require.Error(t, err)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, KindMissingField, ruleErr.Kind)

	now := time.Now()
	decision := model.DecisionRejected
	err = Validate(model.StatusDecisionPending, model.StatusRejected, Payload{
		DecisionAt:   &now,
		DecisionType: &decision,
	})
	assert.NoError(t, err)
}

func TestValidate_AppointmentSiblingsCannotCrossLink(t *testing.T) {
	// Biometric and interview are siblings reached from UNDER_REVIEW;
	// direct moves between them are not permitted.
	err := Validate(model.StatusBiometricScheduled, model.StatusInterviewScheduled, fullPayload())
	assert.Error(t, err)

	err = Validate(model.StatusInterviewScheduled, model.StatusBiometricScheduled, fullPayload())
	assert.Error(t, err)
}

func TestValidate_WithdrawnReachableFromEveryPreTerminalState(t *testing.T) {
	for _, s := range allStatuses {
		if IsTerminal(s) {
			continue
		}
		err := Validate(s, model.StatusWithdrawn, Payload{})
		assert.NoError(t, err, "expected %s -> WITHDRAWN to be allowed", s)
	}
}

func TestValidate_AdditionalDocsRoundTrips(t *testing.T) {
	assert.NoError(t, Validate(model.StatusAdditionalDocsRequested, model.StatusUnderReview, Payload{}))
	assert.NoError(t, Validate(model.StatusAdditionalDocsRequested, model.StatusSubmittedWaiting, Payload{}))
}

func TestValidate_PostSubmissionGuaranteesSubmissionFields(t *testing.T) {
	// A record can only hold one of these statuses after a submission was
	// recorded, so returning to UNDER_REVIEW needs no re-supplied payload.
	for _, from := range []model.LifecycleStatus{
		model.StatusBiometricScheduled,
		model.StatusInterviewScheduled,
	} {
		assert.NoError(t, Validate(from, model.StatusUnderReview, Payload{}),
			"expected %s -> UNDER_REVIEW with empty payload to be allowed", from)
	}

	// Pre-submission current statuses guarantee nothing: the first
	// submission still has to carry its data.
	err := Validate(model.StatusReadyToSubmit, model.StatusSubmittedWaiting, Payload{})
	var ruleErr *RuleError
	assert.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, KindMissingField, ruleErr.Kind)
	assert.Equal(t, "submittedAt", ruleErr.Field)
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(model.StatusApproved))
	assert.True(t, IsTerminal(model.StatusRejected))
	assert.True(t, IsTerminal(model.StatusWithdrawn))
	assert.False(t, IsTerminal(model.StatusUnderReview))
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, IsPreSubmission(model.StatusDocumentsInProgress))
	assert.True(t, IsPreSubmission(model.StatusReadyToSubmit))
	assert.False(t, IsPreSubmission(model.StatusSubmittedWaiting))

	assert.True(t, IsPostSubmission(model.StatusUnderReview))
	assert.False(t, IsPostSubmission(model.StatusApproved))
	assert.False(t, IsPostSubmission(model.StatusDocumentsInProgress))
}

func TestIsKnown(t *testing.T) {
	for _, s := range allStatuses {
		assert.True(t, IsKnown(s))
	}
	assert.False(t, IsKnown(model.LifecycleStatus("ON_HOLD")))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "Submitted - Awaiting Review", StatusLabel(model.StatusSubmittedWaiting))
	assert.Equal(t, "UNKNOWN", StatusLabel(model.LifecycleStatus("UNKNOWN")))
}
