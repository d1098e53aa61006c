package voice

import "time"

// DefaultSampleRate is the playback rate for synthesized speech (24kHz,
// 16-bit, mono).
const DefaultSampleRate = 24000

// DecodePCM16LE converts raw little-endian 16-bit PCM into normalized
// float32 samples in [-1, 1]. A trailing odd byte is ignored.
func DecodePCM16LE(data []byte) []float32 {
	n := len(data) / 2
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(uint16(data[i*2]) | uint16(data[i*2+1])<<8)
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// PCMDuration reports how long a raw PCM16LE mono buffer plays for at the
// given sample rate.
func PCMDuration(byteLen, sampleRateHz int) time.Duration {
	if sampleRateHz <= 0 || byteLen <= 0 {
		return 0
	}
	samples := byteLen / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRateHz)
}
