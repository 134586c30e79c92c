package audio

// DownmixInterleaved averages each frame of interleaved samples into one
// mono sample. The result is always a fresh slice; an incomplete trailing
// frame is ignored.
func DownmixInterleaved(samples []float32, channels int) []float32 {
	if channels <= 1 {
		out := make([]float32, len(samples))
		copy(out, samples)
		return out
	}

	frames := len(samples) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += samples[base+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}
