package meter

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

const (
	minDecibels = -100.0
	maxDecibels = -30.0

	// clipThreshold is the peak magnitude treated as hitting the converter rail.
	clipThreshold = 0.99
)

// Level reduces one PCM window (samples in [-1,1]) to an amplitude level in [0,100].
// A window that reaches the rail reads 100 whatever its spectrum looks like.
func Level(samples []float64) int {
	n := len(samples)
	if n < 2 {
		return 0
	}
	if peak(samples) >= clipThreshold {
		return 100
	}

	windowed := window.Hann(append(make([]float64, 0, n), samples...))
	coeffs := fourier.NewFFT(n).Coefficients(nil, windowed)
	if len(coeffs) == 0 {
		return 0
	}

	var sum float64
	for _, c := range coeffs {
		sum += float64(magnitudeByte(cmplx.Abs(c) / float64(n)))
	}
	mean := sum / float64(len(coeffs))

	level := int(math.Round(mean / 128 * 100))
	switch {
	case level < 0:
		return 0
	case level > 100:
		return 100
	default:
		return level
	}
}

func peak(samples []float64) float64 {
	return math.Max(floats.Max(samples), -floats.Min(samples))
}

// magnitudeByte maps a linear bin magnitude onto 0..255 across the decibel range.
func magnitudeByte(magnitude float64) uint8 {
	if magnitude <= 0 {
		return 0
	}
	db := 20 * math.Log10(magnitude)
	scaled := (db - minDecibels) / (maxDecibels - minDecibels) * 255
	switch {
	case scaled <= 0:
		return 0
	case scaled >= 255:
		return 255
	default:
		return uint8(scaled)
	}
}
