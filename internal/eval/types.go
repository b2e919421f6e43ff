package eval

// #region eval-config
// EvalConfig holds the checks' tunables.
type EvalConfig struct {
	EscapePhrase string  // escape messages must contain this (case-insensitive)
	Epsilon      float64 // tolerance for the nearest-anchor check
}

// DefaultEvalConfig returns the default checks.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		EscapePhrase: "not sure",
		Epsilon:      1e-9,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the outcome of checking one response.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
