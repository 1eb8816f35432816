package schedule

import "visatrack/internal/model"

// TemplateEntry is one milestone definition inside a visa-type template.
// OffsetDays is counted from the submission date.
type TemplateEntry struct {
	Type        model.MilestoneType
	Label       string
	Description string
	OffsetDays  int
	Location    string
	Checklist   []string
}

// Day offsets are product configuration, not regulation: they approximate
// published processing windows and are expected to be tuned per market.
var visaTemplates = map[string][]TemplateEntry{
	"uk_global_talent": {
		{
			Type:        model.MilestoneSubmission,
			Label:       "Application Submitted",
			Description: "Application submitted to the Home Office portal",
			OffsetDays:  0,
			Checklist:   []string{"Payment confirmation", "Portal reference number"},
		},
		{
			Type:        model.MilestoneAcknowledgment,
			Label:       "Submission Acknowledged",
			Description: "Confirmation email from the Home Office",
			OffsetDays:  3,
		},
		{
			Type:        model.MilestoneBiometricAppointment,
			Label:       "Biometric Appointment",
			Description: "Fingerprints and photo at a UKVCAS service point",
			OffsetDays:  14,
			Location:    "UKVCAS service point",
			Checklist:   []string{"Appointment confirmation", "Passport", "BRP collection letter"},
		},
		{
			Type:        model.MilestoneReview,
			Label:       "Endorsement Review",
			Description: "Endorsing body assessment of the application",
			OffsetDays:  30,
		},
		{
			Type:        model.MilestoneDecision,
			Label:       "Final Decision",
			Description: "Home Office decision on the visa application",
			OffsetDays:  56,
		},
	},
	"us_h1b": {
		{
			Type:        model.MilestoneSubmission,
			Label:       "Petition Filed",
			Description: "Form I-129 filed with USCIS",
			OffsetDays:  0,
			Checklist:   []string{"Receipt notice", "LCA certification"},
		},
		{
			Type:        model.MilestoneAcknowledgment,
			Label:       "Receipt Notice",
			Description: "USCIS receipt notice (Form I-797C)",
			OffsetDays:  10,
		},
		{
			Type:        model.MilestoneBiometricAppointment,
			Label:       "Biometrics Appointment",
			Description: "Biometrics at an Application Support Center",
			OffsetDays:  28,
			Location:    "USCIS Application Support Center",
		},
		{
			Type:        model.MilestoneInterview,
			Label:       "Consular Interview",
			Description: "Visa interview at the consulate",
			OffsetDays:  60,
			Location:    "US Consulate",
			Checklist:   []string{"DS-160 confirmation", "Passport", "Approval notice"},
		},
		{
			Type:        model.MilestoneDecision,
			Label:       "Final Decision",
			Description: "Adjudication decision on the petition",
			OffsetDays:  90,
		},
	},
	"schengen_work": {
		{
			Type:        model.MilestoneSubmission,
			Label:       "Application Lodged",
			Description: "Application lodged at the consulate or visa centre",
			OffsetDays:  0,
		},
		{
			Type:        model.MilestoneBiometricAppointment,
			Label:       "Biometrics Collection",
			Description: "Fingerprint collection at the visa centre",
			OffsetDays:  7,
			Location:    "Visa application centre",
		},
		{
			Type:        model.MilestoneReview,
			Label:       "Consular Review",
			Description: "Review by the consular section",
			OffsetDays:  21,
		},
		{
			Type:        model.MilestoneDecision,
			Label:       "Decision and Passport Return",
			Description: "Decision issued and passport returned",
			OffsetDays:  45,
		},
	},
}

// genericTemplate is the fallback for visa types without a specific
// template: acknowledgment, review and decision evenly spaced across a
// 90-day default window.
var genericTemplate = []TemplateEntry{
	{
		Type:        model.MilestoneAcknowledgment,
		Label:       "Submission Acknowledged",
		Description: "Confirmation of receipt from the processing authority",
		OffsetDays:  30,
	},
	{
		Type:        model.MilestoneReview,
		Label:       "Application Under Review",
		Description: "Review by the processing authority",
		OffsetDays:  60,
	},
	{
		Type:        model.MilestoneDecision,
		Label:       "Final Decision",
		Description: "Decision on the application",
		OffsetDays:  90,
	},
}

// TemplateFor returns the milestone template for a visa type, falling back
// to the generic template for unknown types. Unknown types are a recoverable
// degradation, never an error.
func TemplateFor(visaType string) []TemplateEntry {
	if tpl, ok := visaTemplates[visaType]; ok {
		return tpl
	}
	return genericTemplate
}

// KnownVisaTypes lists the visa types with a specific template.
func KnownVisaTypes() []string {
	types := make([]string, 0, len(visaTemplates))
	for t := range visaTemplates {
		types = append(types, t)
	}
	return types
}
