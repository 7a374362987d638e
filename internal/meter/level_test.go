package meter

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func noise(seed int64, n int, amplitude float64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

func TestLevelSilenceIsZero(t *testing.T) {
	require.Equal(t, 0, Level(make([]float64, 1024)))
	require.Equal(t, 0, Level(nil))
	require.Equal(t, 0, Level([]float64{0.9}))
}

func TestLevelFullScaleNoiseSaturates(t *testing.T) {
	require.Equal(t, 100, Level(noise(1, 1024, 1)))
}

func tone(n int, frequencyHz, gain float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		v := gain * math.Sin(2*math.Pi*frequencyHz*float64(i)/16000)
		out[i] = math.Max(-1, math.Min(1, v))
	}
	return out
}

func TestLevelClippedInputSaturates(t *testing.T) {
	for _, hz := range []float64{200, 440, 1000, 3000} {
		require.Equal(t, 100, Level(tone(1024, hz, 10)), "clipped %vHz", hz)
	}
	require.Equal(t, 100, Level(tone(1024, 1000, 1)))

	rail := make([]float64, 1024)
	for i := range rail {
		rail[i] = -1
	}
	require.Equal(t, 100, Level(rail))
}

func TestLevelBelowRailDoesNotSaturate(t *testing.T) {
	require.Less(t, Level(tone(1024, 1000, 0.5)), 100)
}

func TestLevelTracksAmplitude(t *testing.T) {
	quiet := Level(noise(7, 1024, 0.001))
	medium := Level(noise(7, 1024, 0.01))
	loud := Level(noise(7, 1024, 0.1))

	require.LessOrEqual(t, quiet, medium)
	require.LessOrEqual(t, medium, loud)
	require.Greater(t, medium, 0)
	require.Less(t, medium, 100)
}

func TestLevelStaysInRange(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		amplitude := float64(seed+1) / 20
		level := Level(noise(seed, 512, amplitude))
		require.GreaterOrEqual(t, level, 0)
		require.LessOrEqual(t, level, 100)
	}
}

func TestMagnitudeByte(t *testing.T) {
	require.Equal(t, uint8(0), magnitudeByte(0))
	require.Equal(t, uint8(0), magnitudeByte(1e-6))
	require.Equal(t, uint8(255), magnitudeByte(1))
	require.Equal(t, uint8(127), magnitudeByte(math.Pow(10, -65.0/20)))
}
