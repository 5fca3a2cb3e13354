package capture

// DefaultThreshold is the score a frame must reach to be considered good
// enough to transmit. LenientThreshold admits more frames when the caller
// prefers throughput over quality.
const (
	DefaultThreshold = 70
	LenientThreshold = 40
)

// Score folds the four raw metrics into a 0-100 composite and a short
// feedback hint. It starts from 100 and subtracts fixed penalties per
// degraded metric, flooring at 0.
func Score(m Metrics) (int, string) {
	score := 100

	switch {
	case m.Brightness < 30 || m.Brightness > 240:
		score -= 30
	case m.Brightness < 50 || m.Brightness > 200:
		score -= 15
	}

	switch {
	case m.Contrast < 20:
		score -= 20
	case m.Contrast < 40:
		score -= 10
	}

	switch {
	case m.Sharpness < 30:
		score -= 40
	case m.Sharpness < 60:
		score -= 20
	}

	switch {
	case m.Stability < 50:
		score -= 20
	case m.Stability < 75:
		score -= 10
	}

	if score < 0 {
		score = 0
	}

	return score, feedback(m, score)
}

// feedback picks the most actionable hint, worst problem first.
func feedback(m Metrics, score int) string {
	switch {
	case m.Brightness < 30:
		return "too dark, add more light"
	case m.Brightness > 240:
		return "too bright, reduce lighting"
	case m.Sharpness < 30:
		return "too blurry, hold still or refocus"
	case m.Stability < 50:
		return "camera moving, hold steady"
	case score >= 80:
		return "perfect"
	case score >= 70:
		return "good quality"
	default:
		return "adjust camera position"
	}
}

// IsGoodQuality reports whether the metrics pass the given score threshold.
func IsGoodQuality(m Metrics, threshold int) bool {
	return m.Score >= threshold
}

// PlaceholderMetrics tags frames emitted by the fallback path, where the
// quality gate failed but the frame is transmitted anyway so the remote
// service is never starved.
func PlaceholderMetrics() Metrics {
	return Metrics{
		Stability: 100,
		Score:     50,
		Feedback:  "quality gate bypassed",
	}
}
