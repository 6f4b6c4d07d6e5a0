package audio

import (
	"encoding/binary"
	"fmt"
	"time"
)

// HeaderSize is the size of the canonical PCM WAV header produced by EncodeWAV.
const HeaderSize = 44

const pcmFormat = 1

// Info describes the PCM payload of a WAV container.
type Info struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataSize      int
}

func (i Info) Duration() time.Duration {
	bytesPerSec := i.SampleRate * i.Channels * i.BitsPerSample / 8
	if bytesPerSec == 0 {
		return 0
	}
	return time.Duration(float64(i.DataSize) / float64(bytesPerSec) * float64(time.Second))
}

// EncodeWAV wraps mono 16-bit samples in a 44-byte-header PCM WAV container.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := make([]byte, HeaderSize+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], pcmFormat)
	binary.LittleEndian.PutUint16(buf[22:24], 1)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)
	binary.LittleEndian.PutUint16(buf[34:36], 16)

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[HeaderSize+i*2:], uint16(s))
	}
	return buf
}

// DecodeWAV parses a PCM WAV container and returns its format info and the
// samples downmixed to mono.
func DecodeWAV(data []byte) (Info, []int16, error) {
	info, payload, err := parseWAV(data)
	if err != nil {
		return Info{}, nil, err
	}
	samples := PCMBytesToInt16(payload)
	if info.Channels > 1 {
		samples = DownmixToMono(samples, info.Channels)
	}
	return info, samples, nil
}

// Probe reads only the container metadata, without decoding samples.
func Probe(data []byte) (Info, error) {
	info, _, err := parseWAV(data)
	return info, err
}

// ProbeDuration reads only the container metadata, without decoding samples.
func ProbeDuration(data []byte) (time.Duration, error) {
	info, err := Probe(data)
	if err != nil {
		return 0, err
	}
	return info.Duration(), nil
}

func parseWAV(data []byte) (Info, []byte, error) {
	if len(data) < HeaderSize {
		return Info{}, nil, fmt.Errorf("wav: container too short (%d bytes)", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Info{}, nil, fmt.Errorf("wav: not a RIFF/WAVE container")
	}

	var info Info
	var payload []byte
	sawFmt := false

	// Chunks are not guaranteed to appear in a fixed order; scan them.
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Info{}, nil, fmt.Errorf("wav: fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != pcmFormat {
				return Info{}, nil, fmt.Errorf("wav: unsupported audio format %d", format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			sawFmt = true
		case "data":
			payload = data[body : body+size]
		}

		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !sawFmt {
		return Info{}, nil, fmt.Errorf("wav: missing fmt chunk")
	}
	if payload == nil {
		return Info{}, nil, fmt.Errorf("wav: missing data chunk")
	}
	if info.BitsPerSample != 16 {
		return Info{}, nil, fmt.Errorf("wav: unsupported bit depth %d", info.BitsPerSample)
	}
	info.DataSize = len(payload)
	return info, payload, nil
}
