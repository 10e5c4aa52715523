package audioio

import (
	"encoding/binary"
	"math"
	"time"
)

// Envelope ramps keep the cue from clicking at its edges.
const (
	attack  = 5 * time.Millisecond
	release = 30 * time.Millisecond
)

// Beep synthesizes one mono sine cue at full scale with a linear
// attack/release envelope.
func Beep(frequency float64, duration time.Duration, sampleRate int) []int16 {
	n := int(duration.Seconds() * float64(sampleRate))
	if n <= 0 {
		return []int16{}
	}

	atk := int(attack.Seconds() * float64(sampleRate))
	rel := int(release.Seconds() * float64(sampleRate))
	if atk+rel > n {
		atk, rel = n/4, n/4
	}

	out := make([]int16, n)
	step := 2 * math.Pi * frequency / float64(sampleRate)
	for i := range out {
		gain := 1.0
		switch {
		case i < atk:
			gain = float64(i) / float64(atk)
		case i >= n-rel:
			gain = float64(n-1-i) / float64(rel)
		}
		out[i] = int16(math.Sin(step*float64(i)) * gain * 32767 * 0.9)
	}
	return out
}

// Repitch shifts a cue by factor by resampling it: factor 2 plays an
// octave up and half as long.
func Repitch(samples []int16, factor float64, sampleRate int) []int16 {
	if !(factor > 0) || factor == 1 {
		return samples
	}
	return Resample(samples, int(float64(sampleRate)*factor), sampleRate)
}

// Resample converts audio from one sample rate to another using linear interpolation.
func Resample(samples []int16, fromRate, toRate int) []int16 {
	if fromRate == toRate {
		return samples
	}

	if len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	newLen := int(float64(len(samples)) / ratio)

	if newLen == 0 {
		return []int16{}
	}

	result := make([]int16, newLen)

	for i := 0; i < newLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			result[i] = samples[len(samples)-1]
		} else {
			s1 := float64(samples[srcIdx])
			s2 := float64(samples[srcIdx+1])
			result[i] = int16(s1 + frac*(s2-s1))
		}
	}

	return result
}

// PanStereo spreads mono samples into interleaved stereo with a balance
// law: the far channel fades out as pan moves away from it, the near
// channel stays at full volume.
func PanStereo(samples []int16, volume, pan float64) []int16 {
	volume = clampUnit(volume)
	pan = clampPan(pan)

	left := volume * math.Min(1, 1-pan)
	right := volume * math.Min(1, 1+pan)

	stereo := make([]int16, len(samples)*2)
	for i, s := range samples {
		stereo[i*2] = int16(float64(s) * left)
		stereo[i*2+1] = int16(float64(s) * right)
	}
	return stereo
}

// SamplesToL16 encodes samples as network byte order PCM (RFC 3551 L16).
func SamplesToL16(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.BigEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}

// L16ToSamples decodes network byte order PCM.
func L16ToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.BigEndian.Uint16(data[i*2:]))
	}
	return samples
}

// CalculateRMS calculates the mean power of samples.
// Returns a value between 0.0 and 1.0.
func CalculateRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}

	rms := sum / float64(len(samples))
	// Normalize to 0-1 range (32767^2 = max possible)
	return rms / (32767 * 32767)
}
