package live

import (
	"math"
)

// CalculateRMS computes the root-mean-square amplitude of a float frame.
// Samples are expected in [-1, 1]; the result is in [0, 1].
func CalculateRMS(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}

	var sum float64
	for _, s := range frame {
		f := float64(s)
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(frame)))
}

// FloatToPCM16 converts float samples to little-endian 16-bit signed PCM,
// clamping to [-1, 1] before scaling.
func FloatToPCM16(frame []float32) []byte {
	out := make([]byte, len(frame)*2)
	for i, s := range frame {
		f := float64(s)
		if f > 1 {
			f = 1
		} else if f < -1 {
			f = -1
		}
		v := int16(f * 32767)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// PCM16ToFloat decodes little-endian 16-bit signed PCM into float samples
// (sample = int16/32768). A trailing odd byte is ignored.
func PCM16ToFloat(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float32(v) / 32768.0
	}
	return out
}
