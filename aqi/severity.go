package aqi

// Severity is the health label for an ISPU value.
type Severity string

const (
	Good          Severity = "Good"
	Moderate      Severity = "Moderate"
	Unhealthy     Severity = "Unhealthy"
	VeryUnhealthy Severity = "Very Unhealthy"
	Hazardous     Severity = "Hazardous"
	// Unclassified is returned for values beyond the last band's upper bound.
	Unclassified Severity = "Unclassified"
)

// Band maps an inclusive upper bound to a severity label.
type Band struct {
	Limit float64  `json:"limit" yaml:"limit"`
	Label Severity `json:"label" yaml:"label"`
}

// DefaultBands returns the fixed ISPU severity thresholds.
func DefaultBands() []Band {
	return []Band{
		{Limit: 50, Label: Good},
		{Limit: 100, Label: Moderate},
		{Limit: 200, Label: Unhealthy},
		{Limit: 300, Label: VeryUnhealthy},
		{Limit: 500, Label: Hazardous},
	}
}

// Classify returns the severity label for a single index value. Each band's
// limit is an inclusive upper bound; values above the last band are
// Unclassified.
func Classify(value float64, bands []Band) Severity {
	for _, b := range bands {
		if value <= b.Limit {
			return b.Label
		}
	}
	return Unclassified
}

// ClassifyAll classifies every value in a series.
func ClassifyAll(values []float64, bands []Band) []Severity {
	labels := make([]Severity, len(values))
	for i, v := range values {
		labels[i] = Classify(v, bands)
	}
	return labels
}
