package models

// DailyReport is the rendered content of one user's daily digest. Not persisted.
type DailyReport struct {
	Date        string
	SkillName   string
	Lines       []ReportLine
	FeedbackURL string
}

// ReportLine is one (formatted timestamp, utterance) pair
type ReportLine struct {
	Time      string
	Utterance string
}
