package lifecycle

import (
	"fmt"
	"time"

	"visatrack/internal/model"
)

// RuleKind classifies why a transition was rejected
type RuleKind string

const (
	KindInvalidTransition RuleKind = "invalid_transition"
	KindMissingField      RuleKind = "missing_field"
	KindBusinessRule      RuleKind = "business_rule"
)

// RuleError is a business rejection of a status transition. It is an
// expected outcome, not a defect; callers render the message to the user.
type RuleError struct {
	Kind    RuleKind
	Field   string
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

// Payload carries the application fields supplied with a status-change
// request. Nil means the field was not provided.
type Payload struct {
	CompletionScore       *int
	SubmittedAt           *time.Time
	SubmissionMethod      *string
	PortalReferenceNumber *string
	SubmissionNotes       *string
	ExpectedDecisionDate  *time.Time
	DecisionAt            *time.Time
	DecisionType          *model.DecisionType
	DecisionNotes         *string
	UserNotes             *string
}

// allowedTransitions is the transition table: from-status to the set of
// statuses reachable from it. Terminal statuses map to an empty list.
var allowedTransitions = map[model.LifecycleStatus][]model.LifecycleStatus{
	model.StatusDocumentsInProgress: {model.StatusReadyToSubmit, model.StatusWithdrawn},
	model.StatusReadyToSubmit:       {model.StatusSubmittedWaiting, model.StatusDocumentsInProgress, model.StatusWithdrawn},

	model.StatusSubmittedWaiting:        {model.StatusUnderReview, model.StatusAdditionalDocsRequested, model.StatusWithdrawn},
	model.StatusUnderReview:             {model.StatusBiometricScheduled, model.StatusInterviewScheduled, model.StatusDecisionPending, model.StatusAdditionalDocsRequested, model.StatusWithdrawn},
	model.StatusAdditionalDocsRequested: {model.StatusUnderReview, model.StatusSubmittedWaiting, model.StatusWithdrawn},
	model.StatusBiometricScheduled:      {model.StatusUnderReview, model.StatusDecisionPending, model.StatusWithdrawn},
	model.StatusInterviewScheduled:      {model.StatusUnderReview, model.StatusDecisionPending, model.StatusWithdrawn},
	model.StatusDecisionPending:         {model.StatusApproved, model.StatusRejected, model.StatusWithdrawn},

	model.StatusApproved:  {},
	model.StatusRejected:  {},
	model.StatusWithdrawn: {},
}

// requiredFields lists the payload fields a status demands before it may
// become current. A field already guaranteed by the current status (because
// that status itself requires it) does not need to be re-supplied.
var requiredFields = map[model.LifecycleStatus][]string{
	model.StatusDocumentsInProgress:     {},
	model.StatusReadyToSubmit:           {"completionScore"},
	model.StatusSubmittedWaiting:        {"submittedAt", "submissionMethod"},
	model.StatusUnderReview:             {"submittedAt"},
	model.StatusAdditionalDocsRequested: {},
	model.StatusBiometricScheduled:      {},
	model.StatusInterviewScheduled:      {},
	model.StatusDecisionPending:         {"expectedDecisionDate"},
	model.StatusApproved:                {"decisionAt", "decisionType"},
	model.StatusRejected:                {"decisionAt", "decisionType"},
	model.StatusWithdrawn:               {},
}

// CanTransitionTo reports whether proposed is reachable from current.
func CanTransitionTo(current, proposed model.LifecycleStatus) bool {
	for _, s := range allowedTransitions[current] {
		if s == proposed {
			return true
		}
	}
	return false
}

// RequiredFields returns the fields a status demands.
func RequiredFields(status model.LifecycleStatus) []string {
	return requiredFields[status]
}

// Validate decides whether the transition from current to proposed is legal
// and whether the payload carries the data the proposed status requires.
// It is a pure decision function; persistence is the caller's job and must
// happen only on a nil result.
func Validate(current, proposed model.LifecycleStatus, payload Payload) error {
	if !CanTransitionTo(current, proposed) {
		return &RuleError{
			Kind:    KindInvalidTransition,
			Message: fmt.Sprintf("cannot transition from %s to %s", current, proposed),
		}
	}

	for _, field := range requiredFields[proposed] {
		if payload.has(field) {
			continue
		}
		// The invariant for the current status already guarantees this
		// field is set on the application record.
		if guaranteedBy(current, field) {
			continue
		}
		return &RuleError{
			Kind:    KindMissingField,
			Field:   field,
			Message: fmt.Sprintf("missing required field: %s", field),
		}
	}

	switch proposed {
	case model.StatusReadyToSubmit:
		if payload.CompletionScore == nil || *payload.CompletionScore < 100 {
			return &RuleError{
				Kind:    KindBusinessRule,
				Field:   "completionScore",
				Message: "completion score must be 100% to mark as ready to submit",
			}
		}
	case model.StatusSubmittedWaiting:
		if !guaranteedBy(current, "submittedAt") && (payload.SubmittedAt == nil || payload.SubmittedAt.IsZero()) {
			return &RuleError{
				Kind:    KindBusinessRule,
				Field:   "submittedAt",
				Message: "submission date is required",
			}
		}
	case model.StatusApproved, model.StatusRejected:
		if payload.DecisionAt == nil || payload.DecisionAt.IsZero() {
			return &RuleError{
				Kind:    KindBusinessRule,
				Field:   "decisionAt",
				Message: "decision date is required",
			}
		}
	}

	return nil
}

// guaranteedBy reports whether the current status already guarantees the
// field is set on the record. Any post-submission status is only reachable
// after a submission was recorded, so the submission fields are guaranteed
// regardless of that status's own required list.
func guaranteedBy(status model.LifecycleStatus, field string) bool {
	if IsPostSubmission(status) && (field == "submittedAt" || field == "submissionMethod") {
		return true
	}
	for _, f := range requiredFields[status] {
		if f == field {
			return true
		}
	}
	return false
}

func (p Payload) has(field string) bool {
	switch field {
	case "completionScore":
		return p.CompletionScore != nil
	case "submittedAt":
		return p.SubmittedAt != nil
	case "submissionMethod":
		return p.SubmissionMethod != nil
	case "expectedDecisionDate":
		return p.ExpectedDecisionDate != nil
	case "decisionAt":
		return p.DecisionAt != nil
	case "decisionType":
		return p.DecisionType != nil
	default:
		return false
	}
}
