package audio

import (
	"math"
	"testing"
	"time"
)

func sine(sampleRate int, seconds float64) []int16 {
	n := int(float64(sampleRate) * seconds)
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(10000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}
	return samples
}

func TestEncodeWAV_Header(t *testing.T) {
	samples := []int16{1, 2, 3, 4}
	data := EncodeWAV(samples, 16000)

	if len(data) != HeaderSize+8 {
		t.Fatalf("expected %d bytes, got %d", HeaderSize+8, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Error("missing RIFF/WAVE magic")
	}
	if string(data[36:40]) != "data" {
		t.Error("missing data chunk id")
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	samples := sine(16000, 0.1)
	data := EncodeWAV(samples, 16000)

	info, decoded, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 || info.BitsPerSample != 16 {
		t.Errorf("unexpected info: %+v", info)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Fatalf("sample %d: expected %d, got %d", i, samples[i], decoded[i])
		}
	}
}

func TestProbeDuration(t *testing.T) {
	data := EncodeWAV(sine(48000, 1.5), 48000)
	dur, err := ProbeDuration(data)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if diff := (dur - 1500*time.Millisecond).Abs(); diff > 2*time.Millisecond {
		t.Errorf("expected ~1.5s, got %v", dur)
	}
}

func TestDecodeWAV_RejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("definitely not audio data, far too short")); err == nil {
		t.Error("expected error for non-WAV input")
	}
	long := make([]byte, 100)
	copy(long, "OGGS")
	if _, _, err := DecodeWAV(long); err == nil {
		t.Error("expected error for wrong magic")
	}
}

func TestDecodeWAV_DownmixesStereo(t *testing.T) {
	// Hand-build a stereo container: channel A = 100, channel B = 300.
	mono := EncodeWAV([]int16{0, 0}, 8000)
	stereo := make([]byte, len(mono))
	copy(stereo, mono)
	stereo[22] = 2 // channels
	// interleaved L/R pairs
	stereo[HeaderSize+0] = 100
	stereo[HeaderSize+2] = 44 // 300 = 0x012C
	stereo[HeaderSize+3] = 1

	_, samples, err := DecodeWAV(stereo)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("expected 1 mono sample, got %d", len(samples))
	}
	if samples[0] != 200 {
		t.Errorf("expected downmix average 200, got %d", samples[0])
	}
}

func TestDownmixToMono_MonoPassthrough(t *testing.T) {
	in := []int16{1, 2, 3}
	out := DownmixToMono(in, 1)
	if len(out) != 3 || out[2] != 3 {
		t.Errorf("mono input should pass through unchanged, got %v", out)
	}
}

func TestInt16ToPCMBytes_RoundTrip(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	out := PCMBytesToInt16(Int16ToPCMBytes(in))
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: expected %d, got %d", i, in[i], out[i])
		}
	}
}
