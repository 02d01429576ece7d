package models

// Parsed field keys as stored in parsed_data
const (
	FieldAmount    = "amount"
	FieldUnit      = "unit"
	FieldAction    = "action"
	FieldSubstance = "substance"
)

// ParsedFields holds the best-effort structure extracted from an utterance.
// An empty string means the field was not detected.
type ParsedFields struct {
	Amount    string
	Unit      string
	Action    string
	Substance string
}

// HasAmount reports whether an amount was detected
func (p ParsedFields) HasAmount() bool { return p.Amount != "" }

// HasUnit reports whether a unit was detected
func (p ParsedFields) HasUnit() bool { return p.Unit != "" }

// HasAction reports whether an action was detected
func (p ParsedFields) HasAction() bool { return p.Action != "" }

// HasSubstance reports whether a substance was detected
func (p ParsedFields) HasSubstance() bool { return p.Substance != "" }

// IsEmpty reports whether nothing was detected
func (p ParsedFields) IsEmpty() bool {
	return !p.HasAmount() && !p.HasUnit() && !p.HasAction() && !p.HasSubstance()
}

// Map returns only the detected fields, keyed by their stored names
func (p ParsedFields) Map() map[string]string {
	m := make(map[string]string, 4)
	if p.HasAmount() {
		m[FieldAmount] = p.Amount
	}
	if p.HasUnit() {
		m[FieldUnit] = p.Unit
	}
	if p.HasAction() {
		m[FieldAction] = p.Action
	}
	if p.HasSubstance() {
		m[FieldSubstance] = p.Substance
	}
	return m
}

// ParsedFieldsFromMap is the inverse of Map; unknown keys are ignored
func ParsedFieldsFromMap(m map[string]string) ParsedFields {
	return ParsedFields{
		Amount:    m[FieldAmount],
		Unit:      m[FieldUnit],
		Action:    m[FieldAction],
		Substance: m[FieldSubstance],
	}
}
