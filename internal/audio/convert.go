package audio

import (
	"encoding/binary"
	"math"
)

// BytesToSamples converts little-endian 16-bit PCM to samples. A trailing odd
// byte is dropped.
func BytesToSamples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// StereoToMono averages each interleaved L+R pair. Uses int32 arithmetic so
// the sum cannot overflow.
func StereoToMono(interleaved []int16) []int16 {
	frames := len(interleaved) / 2
	out := make([]int16, frames)
	for i := range frames {
		l := int32(interleaved[i*2])
		r := int32(interleaved[i*2+1])
		out[i] = int16((l + r) / 2)
	}
	return out
}

// Resample converts mono samples from srcRate to dstRate using linear
// interpolation. Equal rates return the input unchanged. When downsampling,
// each source sample is first passed through a windowed-sinc low-pass at
// 90% of the new Nyquist frequency, so content above it is attenuated rather
// than folded into the output band.
func Resample(samples []int16, srcRate, dstRate int) []int16 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(samples) == 0 {
		return samples
	}

	dstLen := int(int64(len(samples)) * int64(dstRate) / int64(srcRate))
	if dstLen == 0 {
		return nil
	}

	at := func(i int) float64 { return float64(samples[i]) }
	if dstRate < srcRate {
		kernel := lowPassKernel(srcRate, dstRate)
		at = func(i int) float64 { return filteredAt(samples, kernel, i) }
	}

	out := make([]int16, dstLen)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstLen {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)

		v := at(idx)
		if frac > 0 && idx+1 < len(samples) {
			v = v*(1-frac) + at(idx+1)*frac
		}
		out[i] = clampSample(v)
	}
	return out
}

// lowPassKernel returns a Blackman-windowed sinc with unity DC gain. Its
// length grows with the decimation ratio to keep the transition band narrow.
func lowPassKernel(srcRate, dstRate int) []float64 {
	cutoff := 0.45 * float64(dstRate) / float64(srcRate) // cycles per source sample
	half := int(math.Ceil(16 * float64(srcRate) / float64(dstRate)))
	n := 2*half + 1

	kernel := make([]float64, n)
	var sum float64
	for k := range n {
		x := float64(k - half)
		sinc := 2 * cutoff
		if x != 0 {
			sinc = math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
		}
		w := 0.42 - 0.5*math.Cos(2*math.Pi*float64(k)/float64(n-1)) + 0.08*math.Cos(4*math.Pi*float64(k)/float64(n-1))
		kernel[k] = sinc * w
		sum += kernel[k]
	}
	for k := range kernel {
		kernel[k] /= sum
	}
	return kernel
}

// filteredAt convolves the kernel around samples[i]. Indices past either end
// repeat the edge sample.
func filteredAt(samples []int16, kernel []float64, i int) float64 {
	half := len(kernel) / 2
	last := len(samples) - 1
	var acc float64
	for k, h := range kernel {
		j := min(max(i+k-half, 0), last)
		acc += h * float64(samples[j])
	}
	return acc
}

func clampSample(v float64) int16 {
	v = math.Round(v)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}
