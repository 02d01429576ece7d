package models

// MetricLine is one row of the maintenance report
type MetricLine struct {
	Resource string `json:"resource"`
	Metric   string `json:"metric"`
	Value    string `json:"value"`
	// Failed is set when the value could not be fetched
	Failed bool `json:"failed,omitempty"`
}
