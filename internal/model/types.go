package model

import "time"

// LifecycleStatus represents an application's processing stage
type LifecycleStatus string

const (
	StatusDocumentsInProgress     LifecycleStatus = "DOCUMENTS_IN_PROGRESS"
	StatusReadyToSubmit           LifecycleStatus = "READY_TO_SUBMIT"
	StatusSubmittedWaiting        LifecycleStatus = "SUBMITTED_WAITING"
	StatusUnderReview             LifecycleStatus = "UNDER_REVIEW"
	StatusAdditionalDocsRequested LifecycleStatus = "ADDITIONAL_DOCS_REQUESTED"
	StatusBiometricScheduled      LifecycleStatus = "BIOMETRIC_SCHEDULED"
	StatusInterviewScheduled      LifecycleStatus = "INTERVIEW_SCHEDULED"
	StatusDecisionPending         LifecycleStatus = "DECISION_PENDING"
	StatusApproved                LifecycleStatus = "APPROVED"
	StatusRejected                LifecycleStatus = "REJECTED"
	StatusWithdrawn               LifecycleStatus = "WITHDRAWN"
)

// MilestoneStatus represents a milestone's runtime status
type MilestoneStatus string

const (
	MilestonePending    MilestoneStatus = "PENDING"
	MilestoneInProgress MilestoneStatus = "IN_PROGRESS"
	MilestoneCompleted  MilestoneStatus = "COMPLETED"
	MilestoneOverdue    MilestoneStatus = "OVERDUE"
	MilestoneCancelled  MilestoneStatus = "CANCELLED"
)

// MilestoneType represents a milestone category
type MilestoneType string

const (
	MilestoneSubmission           MilestoneType = "SUBMISSION"
	MilestoneAcknowledgment       MilestoneType = "ACKNOWLEDGMENT"
	MilestoneBiometricAppointment MilestoneType = "BIOMETRIC_APPOINTMENT"
	MilestoneInterview            MilestoneType = "INTERVIEW"
	MilestoneReview               MilestoneType = "REVIEW"
	MilestoneDecision             MilestoneType = "DECISION"
)

// ActionType represents the kind of next action
type ActionType string

const (
	ActionUserAction    ActionType = "USER_ACTION"
	ActionWaiting       ActionType = "WAITING"
	ActionInformational ActionType = "INFORMATIONAL"
)

// Priority represents next-action priority
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// DecisionType represents the final decision on an application
type DecisionType string

const (
	DecisionApproved DecisionType = "APPROVED"
	DecisionRejected DecisionType = "REJECTED"
)

// Application represents one visa application
type Application struct {
	ID                    string          `json:"id"`
	UserID                string          `json:"userId"`
	VisaType              string          `json:"visaType"`
	LifecycleStatus       LifecycleStatus `json:"lifecycleStatus"`
	CompletionScore       int             `json:"completionScore"`
	SubmittedAt           *time.Time      `json:"submittedAt,omitempty"`
	SubmissionMethod      *string         `json:"submissionMethod,omitempty"`
	PortalReferenceNumber *string         `json:"portalReferenceNumber,omitempty"`
	SubmissionNotes       *string         `json:"submissionNotes,omitempty"`
	ExpectedDecisionDate  *time.Time      `json:"expectedDecisionDate,omitempty"`
	DecisionAt            *time.Time      `json:"decisionAt,omitempty"`
	DecisionType          *DecisionType   `json:"decisionType,omitempty"`
	DecisionNotes         *string         `json:"decisionNotes,omitempty"`
	UserNotes             string          `json:"userNotes,omitempty"`
	LastStatusUpdate      *time.Time      `json:"lastStatusUpdate,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// Milestone represents a scheduled or completed event tied to one application
type Milestone struct {
	ID                    string          `json:"id"`
	ApplicationID         string          `json:"applicationId"`
	Type                  MilestoneType   `json:"type"`
	Label                 string          `json:"label"`
	Description           *string         `json:"description,omitempty"`
	Location              *string         `json:"location,omitempty"`
	PlannedDate           time.Time       `json:"plannedDate"`
	ActualDate            *time.Time      `json:"actualDate,omitempty"`
	Status                MilestoneStatus `json:"status"`
	Order                 int             `json:"order"`
	IsAutoGenerated       bool            `json:"isAutoGenerated"`
	RequirementsChecklist []string        `json:"requirementsChecklist,omitempty"`
	Notes                 *string         `json:"notes,omitempty"`
	CreatedAt             time.Time       `json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
}

// NextAction is a derived recommendation, never persisted
type NextAction struct {
	ID                 string     `json:"id"`
	ApplicationID      string     `json:"applicationId"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	ActionType         ActionType `json:"actionType"`
	Priority           Priority   `json:"priority"`
	CTALabel           *string    `json:"ctaLabel,omitempty"`
	CTAAction          *string    `json:"ctaAction,omitempty"`
	DueDate            *time.Time `json:"dueDate,omitempty"`
	RelatedMilestoneID *string    `json:"relatedMilestoneId,omitempty"`
}

// DocumentStatus represents an uploaded document's analysis state
type DocumentStatus string

const (
	DocumentPending   DocumentStatus = "PENDING"
	DocumentAnalyzing DocumentStatus = "ANALYZING"
	DocumentValid     DocumentStatus = "VALID"
	DocumentInvalid   DocumentStatus = "INVALID"
)

// Document represents an uploaded supporting document
type Document struct {
	ID            string                 `json:"id"`
	ApplicationID string                 `json:"applicationId"`
	Name          string                 `json:"name"`
	Type          string                 `json:"type"`
	Status        DocumentStatus         `json:"status"`
	Issues        []string               `json:"issues,omitempty"`
	ExtractedData map[string]interface{} `json:"extractedData,omitempty"`
	UploadedAt    time.Time              `json:"uploadedAt"`
}
