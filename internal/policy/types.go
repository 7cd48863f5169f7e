package policy

// Policy carries the decision thresholds as versioned data so gate behavior
// is auditable alongside the decisions it produced.
type Policy struct {
	PolicyID      string     `yaml:"policy_id"`
	PolicyVersion string     `yaml:"policy_version"`
	Thresholds    Thresholds `yaml:"thresholds"`
}

// Thresholds are the tunable cut points of the scoring and decision stages.
type Thresholds struct {
	DQSCritical    float64 `yaml:"dqs_critical"`
	DQSBorderline  float64 `yaml:"dqs_borderline"`
	ConfidenceLow  float64 `yaml:"confidence_low"`
	ConfidenceHigh float64 `yaml:"confidence_high"`

	AnomalyFlag          float64 `yaml:"anomaly_flag"`
	AnomalyReview        float64 `yaml:"anomaly_review"`
	AnomalyEscalate      float64 `yaml:"anomaly_escalate"`
	AnomalyMultiFlag     float64 `yaml:"anomaly_multi_flag"`
	AnomalyMultiFlagsMin int     `yaml:"anomaly_multi_flags_min"`
}

// Default returns the compiled-in policy used when no policy file is given.
func Default() Policy {
	return Policy{
		PolicyID:      "txnscore-default",
		PolicyVersion: "2026-08-01",
		Thresholds: Thresholds{
			DQSCritical:          50,
			DQSBorderline:        70,
			ConfidenceLow:        50,
			ConfidenceHigh:       80,
			AnomalyFlag:          0.6,
			AnomalyReview:        0.8,
			AnomalyEscalate:      0.9,
			AnomalyMultiFlag:     0.7,
			AnomalyMultiFlagsMin: 3,
		},
	}
}
