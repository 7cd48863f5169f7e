package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/davidahmann/txnscore/internal/canon"
)

type LoadedPolicy struct {
	Policy Policy
	Hash   string
	Bytes  []byte
}

// Load reads a YAML policy and computes its hash from the raw bytes. Omitted
// thresholds fall back to the compiled-in defaults.
func Load(path string) (LoadedPolicy, error) {
	// #nosec G304 -- path comes from operator-configured policy path.
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedPolicy{}, err
	}

	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return LoadedPolicy{}, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return LoadedPolicy{}, fmt.Errorf("policy %s: %w", path, err)
	}

	return LoadedPolicy{
		Policy: p,
		Hash:   canon.DigestBytes(data),
		Bytes:  data,
	}, nil
}

func (p Policy) Validate() error {
	t := p.Thresholds
	if t.DQSCritical < 0 || t.DQSCritical > 100 {
		return fmt.Errorf("dqs_critical must be in [0,100], got %v", t.DQSCritical)
	}
	if t.DQSBorderline < t.DQSCritical || t.DQSBorderline > 100 {
		return fmt.Errorf("dqs_borderline must be in [dqs_critical,100], got %v", t.DQSBorderline)
	}
	if t.ConfidenceLow < 0 || t.ConfidenceHigh > 100 || t.ConfidenceLow > t.ConfidenceHigh {
		return fmt.Errorf("confidence bands must satisfy 0 <= low <= high <= 100")
	}
	for name, v := range map[string]float64{
		"anomaly_flag":       t.AnomalyFlag,
		"anomaly_review":     t.AnomalyReview,
		"anomaly_escalate":   t.AnomalyEscalate,
		"anomaly_multi_flag": t.AnomalyMultiFlag,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", name, v)
		}
	}
	if t.AnomalyMultiFlagsMin < 1 {
		return fmt.Errorf("anomaly_multi_flags_min must be >= 1, got %d", t.AnomalyMultiFlagsMin)
	}
	return nil
}
