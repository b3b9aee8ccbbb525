package backoff

import (
	"math/rand"
	"time"
)

// Strategy defines the interface for backoff calculation algorithms.
// This allows for extensible backoff strategies while maintaining consistent behavior.
type Strategy interface {
	// Calculate returns the backoff duration for the given attempt number and parameters.
	// attempt is zero-based: attempt 0 yields the initial delay.
	Calculate(attempt int, initialDelay, maxDelay time.Duration, multiplier, jitter float64) time.Duration
}

// ExponentialJitterStrategy implements exponential backoff with symmetric
// uniform jitter: the jitter-free value is clamped to maxDelay first, then
// perturbed by up to ±jitter of itself. The result never goes below zero.
type ExponentialJitterStrategy struct{}

// Calculate implements the Strategy interface for exponential backoff with jitter.
func (s ExponentialJitterStrategy) Calculate(attempt int, initialDelay, maxDelay time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	delay := time.Duration(float64(initialDelay) * pow(multiplier, attempt))
	if delay < 0 || delay > maxDelay {
		delay = maxDelay
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		perturbation := float64(delay) * jitter * (2*rand.Float64() - 1)
		delay += time.Duration(perturbation)
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

// DecorrelatedJitterStrategy implements decorrelated jitter as per AWS paper.
// This provides smoother tail latencies compared to exponential jitter.
type DecorrelatedJitterStrategy struct{}

// Calculate implements the Strategy interface for decorrelated jitter.
func (s DecorrelatedJitterStrategy) Calculate(attempt int, initialDelay, maxDelay time.Duration, multiplier, jitter float64) time.Duration {
	// Decorrelated jitter as per AWS: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
	// Stateless variant: random_between(base, min(cap, base * 3^attempt))

	if attempt <= 0 {
		return initialDelay
	}

	// Prevent overflow by limiting attempt
	if attempt > 10 {
		attempt = 10
	}

	base := float64(initialDelay)
	upper := base * pow(3.0, attempt)

	maxDelayFloat := float64(maxDelay)
	if upper > maxDelayFloat || upper < 0 {
		upper = maxDelayFloat
	}
	if upper < base {
		upper = base
	}

	delay := base + rand.Float64()*(upper-base)

	result := time.Duration(delay)
	if result < 0 || result > maxDelay {
		result = maxDelay
	}
	return result
}

// clampJitter ensures jitter is within valid bounds [0, 1].
func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// pow calculates base^exponent using integer exponentiation.
func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}

var (
	exponentialJitter  = ExponentialJitterStrategy{}
	decorrelatedJitter = DecorrelatedJitterStrategy{}
)

// GetExponentialJitterCalculator returns the shared exponential strategy.
func GetExponentialJitterCalculator() Strategy { return exponentialJitter }

// GetDecorrelatedJitterCalculator returns the shared decorrelated strategy.
func GetDecorrelatedJitterCalculator() Strategy { return decorrelatedJitter }
