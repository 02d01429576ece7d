package models

// UserEmailPreference represents a user's daily report email settings
type UserEmailPreference struct {
	UserID                      string `json:"user_id"`
	Email                       string `json:"email"`
	EmailSummaryEnabled         bool   `json:"email_summary_enabled"`
	FirstSeen                   string `json:"first_seen,omitempty"`
	LastUpdatedEmailPermissions string `json:"last_updated_email_permissions,omitempty"`
}

// Eligible reports whether the user should receive daily reports
func (p *UserEmailPreference) Eligible() bool {
	return p != nil && p.EmailSummaryEnabled && p.Email != ""
}

// PreferenceUpdate describes a partial update; nil fields are left untouched
type PreferenceUpdate struct {
	Email                       *string `validate:"omitempty,max=320"`
	EmailSummaryEnabled         *bool
	FirstSeen                   *string
	LastUpdatedEmailPermissions *string
}

// IsEmpty reports whether the update changes nothing
func (u PreferenceUpdate) IsEmpty() bool {
	return u.Email == nil && u.EmailSummaryEnabled == nil && u.FirstSeen == nil && u.LastUpdatedEmailPermissions == nil
}

// Apply copies the non-nil fields of u onto p
func (u PreferenceUpdate) Apply(p *UserEmailPreference) {
	if u.Email != nil {
		p.Email = *u.Email
	}
	if u.EmailSummaryEnabled != nil {
		p.EmailSummaryEnabled = *u.EmailSummaryEnabled
	}
	if u.FirstSeen != nil {
		p.FirstSeen = *u.FirstSeen
	}
	if u.LastUpdatedEmailPermissions != nil {
		p.LastUpdatedEmailPermissions = *u.LastUpdatedEmailPermissions
	}
}
