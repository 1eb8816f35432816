package lifecycle

import "visatrack/internal/model"

var statusLabels = map[model.LifecycleStatus]string{
	model.StatusDocumentsInProgress:     "Documents in Progress",
	model.StatusReadyToSubmit:           "Ready to Submit",
	model.StatusSubmittedWaiting:        "Submitted - Awaiting Review",
	model.StatusUnderReview:             "Under Review",
	model.StatusAdditionalDocsRequested: "Additional Documents Requested",
	model.StatusBiometricScheduled:      "Biometric Appointment Scheduled",
	model.StatusInterviewScheduled:      "Interview Scheduled",
	model.StatusDecisionPending:         "Decision Pending",
	model.StatusApproved:                "Approved",
	model.StatusRejected:                "Rejected",
	model.StatusWithdrawn:               "Withdrawn",
}

// StatusLabel returns a user-friendly label for a status.
func StatusLabel(status model.LifecycleStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// IsKnown reports whether status is a recognized lifecycle status. An
// unknown status reaching the engine is a programming defect, not a
// business rejection.
func IsKnown(status model.LifecycleStatus) bool {
	_, ok := allowedTransitions[status]
	return ok
}

// IsTerminal reports whether no further transition is permitted.
func IsTerminal(status model.LifecycleStatus) bool {
	return status == model.StatusApproved ||
		status == model.StatusRejected ||
		status == model.StatusWithdrawn
}

// IsPreSubmission reports whether the application has not yet been submitted.
func IsPreSubmission(status model.LifecycleStatus) bool {
	return status == model.StatusDocumentsInProgress || status == model.StatusReadyToSubmit
}

// IsPostSubmission reports whether the application is submitted but not decided.
func IsPostSubmission(status model.LifecycleStatus) bool {
	return !IsPreSubmission(status) && !IsTerminal(status)
}
