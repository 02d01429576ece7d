package validation

import (
	"testing"

	"github.com/benvon/jotjot/internal/models"
)

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trims", input: "  took aspirin  ", want: "took aspirin"},
		{name: "drops control chars", input: "took\x00 aspirin\x07", want: "took aspirin"},
		{name: "keeps newline and tab", input: "a\n\tb", want: "a\n\tb"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidateDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value   string
		wantErr bool
	}{
		{value: "2024-02-29", wantErr: false},
		{value: "2023-02-29", wantErr: true},
		{value: "yesterday", wantErr: true},
		{value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			err := ValidateDate(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDate(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestISODateTag(t *testing.T) {
	t.Parallel()

	type payload struct {
		Date string `validate:"omitempty,iso_date"`
	}

	if err := Validate.Struct(payload{Date: "2024-01-31"}); err != nil {
		t.Errorf("expected valid date, got %v", err)
	}
	if err := Validate.Struct(payload{}); err != nil {
		t.Errorf("expected empty date to pass omitempty, got %v", err)
	}
	if err := Validate.Struct(payload{Date: "31/01/2024"}); err == nil {
		t.Error("expected error for non ISO date")
	}
}

func TestValidatePreference(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pref    *models.UserEmailPreference
		wantErr bool
	}{
		{name: "nil", pref: nil, wantErr: true},
		{name: "missing user", pref: &models.UserEmailPreference{}, wantErr: true},
		{name: "disabled without email", pref: &models.UserEmailPreference{UserID: "u1"}, wantErr: false},
		{name: "enabled without email", pref: &models.UserEmailPreference{UserID: "u1", EmailSummaryEnabled: true}, wantErr: true},
		{name: "enabled with email", pref: &models.UserEmailPreference{UserID: "u1", Email: "a@b.c", EmailSummaryEnabled: true}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := ValidatePreference(tt.pref)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePreference() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	if err := ValidateEmail("user@example.com"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateEmail("   "); err == nil {
		t.Error("expected error for blank email")
	}
	if err := ValidateEmail("user.example.com"); err == nil {
		t.Error("expected error for email without @")
	}
}

func TestDescribeErrors(t *testing.T) {
	t.Parallel()

	type payload struct {
		UserID string `json:"user_id" validate:"required"`
		Date   string `json:"date,omitempty" validate:"omitempty,iso_date"`
	}

	err := Validate.Struct(payload{Date: "yesterday"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	got := DescribeErrors(err)
	want := "user_id is required; date is invalid (iso_date)"
	if got != want {
		t.Errorf("DescribeErrors() = %q, want %q", got, want)
	}
}
