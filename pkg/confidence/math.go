package confidence

import "math"

const (
	// logitLimit bounds the probability fed into Logit so it never
	// produces an infinity.
	logitLimit = 0.999

	// clampEpsilon keeps soft-clamped confidences strictly inside (0,1).
	clampEpsilon = 0.001

	// deltaGain converts a modifier's delta value into log-odds units.
	deltaGain = 4.0
)

// Sigmoid returns 1/(1+e^-x).
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// Logit returns ln(p/(1-p)) with p clamped to [1-logitLimit, logitLimit].
func Logit(p float64) float64 {
	if p < 1-logitLimit {
		p = 1 - logitLimit
	} else if p > logitLimit {
		p = logitLimit
	}
	return math.Log(p / (1 - p))
}

// SoftClamp maps c into (epsilon, 1-epsilon). Confidence never becomes
// exactly 0 or 1, so later modifiers can always move it again.
func SoftClamp(c float64) float64 {
	if c < 0 {
		c = 0
	} else if c > 1 {
		c = 1
	}
	return clampEpsilon + (1-2*clampEpsilon)*c
}

// SigmoidDelta applies an additive adjustment in log-odds space. Repeated
// deltas compress gracefully near the extremes instead of overshooting.
func SigmoidDelta(c, delta float64) float64 {
	return Sigmoid(Logit(c) + deltaGain*delta)
}

// apply runs one modifier action against the current confidence.
func apply(action Action, current, value float64) float64 {
	switch action {
	case ActionOverride:
		return SoftClamp(value)
	case ActionDelta:
		return SigmoidDelta(current, value)
	case ActionMultiply:
		return SoftClamp(current * value)
	}
	return current
}
