package audio

import "encoding/binary"

// Resample converts 16-bit LE mono PCM from srcRate to dstRate using linear
// interpolation. Returns the input unchanged if rates already match.
func Resample(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}

	samples := bytesToSamples(pcm)
	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(samples)) / ratio)
	out := make([]int16, outLen)

	for i := range outLen {
		srcIdx := float64(i) * ratio
		idx := int(srcIdx)
		frac := srcIdx - float64(idx)
		out[i] = interpolate(samples, idx, frac)
	}

	return samplesToBytes(out)
}

func interpolate(samples []int16, idx int, frac float64) int16 {
	if idx+1 >= len(samples) {
		if len(samples) == 0 {
			return 0
		}
		return samples[len(samples)-1]
	}
	a, b := float64(samples[idx]), float64(samples[idx+1])
	return int16(a*(1-frac) + b*frac)
}

func bytesToSamples(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := range n {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
