// Package audiotest builds small PCM recordings for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// Sine returns duration seconds of a sine tone.
func Sine(freq float64, sampleRate int, duration, amp float64) []float64 {
	n := int(float64(sampleRate) * duration)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return samples
}

// EncodeWAV encodes interleaved samples in [-1, 1] as a 16-bit PCM WAV file.
func EncodeWAV(samples []float64, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	dataSize := uint32(len(samples) * 2)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataSize)

	for _, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		binary.Write(&buf, binary.LittleEndian, int16(math.Round(s*32767)))
	}
	return buf.Bytes()
}

// WriteWAV writes a mono WAV file named name into a temporary directory and
// returns its path.
func WriteWAV(t testing.TB, name string, samples []float64, sampleRate int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, EncodeWAV(samples, sampleRate, 1), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}
