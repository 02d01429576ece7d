// Package invocation routes direct invocation events (scheduled reports,
// maintenance, operator checks) and forwards everything else to the skill.
package invocation

import "strings"

// Event is the discriminated payload of a direct invocation
type Event struct {
	DailyReport           bool     `json:"daily_report,omitempty"`
	DryRun                bool     `json:"dry_run,omitempty"`
	EmailSummaryFlag      bool     `json:"email_summary_flag,omitempty"`
	DailyMaintenance      bool     `json:"daily_maintenance,omitempty"`
	TestUserIDEmailReport bool     `json:"test_user_id_email_report,omitempty"`
	UserID                string   `json:"user_id,omitempty"`
	Date                  string   `json:"date,omitempty" validate:"omitempty,iso_date"`
	DynamoDBTableNames    []string `json:"dynamodb_table_names,omitempty"`
	LambdaFunctionNames   []string `json:"lambda_function_names,omitempty"`
	TargetEmail           string   `json:"target_email,omitempty" validate:"omitempty,email"`
}

// EventKind is the closed set of things an invocation can ask for
type EventKind int

const (
	// KindSkill is any payload that is not a recognised direct event
	KindSkill EventKind = iota
	KindDailyReport
	KindEmailSummaryFlag
	KindDailyMaintenance
	KindTestUserEmailReport
)

func (k EventKind) String() string {
	switch k {
	case KindDailyReport:
		return "daily_report"
	case KindEmailSummaryFlag:
		return "email_summary_flag"
	case KindDailyMaintenance:
		return "daily_maintenance"
	case KindTestUserEmailReport:
		return "test_user_id_email_report"
	default:
		return "skill"
	}
}

// Kind classifies the event. Flags are checked in a fixed order so a payload
// carrying several of them always resolves the same way.
func (e *Event) Kind() EventKind {
	switch {
	case e.DailyReport:
		return KindDailyReport
	case e.EmailSummaryFlag:
		return KindEmailSummaryFlag
	case e.DailyMaintenance:
		return KindDailyMaintenance
	case e.TestUserIDEmailReport:
		return KindTestUserEmailReport
	default:
		return KindSkill
	}
}

// NeedsUser reports whether events of this kind must name a user
func (k EventKind) NeedsUser() bool {
	return k == KindEmailSummaryFlag || k == KindTestUserEmailReport
}

// normalize trims fields and treats the literal "None" target as absent
func (e *Event) normalize() {
	e.UserID = strings.TrimSpace(e.UserID)
	e.Date = strings.TrimSpace(e.Date)
	e.TargetEmail = strings.TrimSpace(e.TargetEmail)
	if strings.EqualFold(e.TargetEmail, "none") {
		e.TargetEmail = ""
	}
}
