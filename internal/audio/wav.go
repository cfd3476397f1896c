package audio

import (
	"bytes"
	"encoding/binary"

	"agriadvisor/internal/ports"
)

const (
	wavHeaderSize = 44
	bitsPerSample = 16
)

// PackageWAV concatenates captured s16le segments in arrival order and wraps
// them in a WAV container.
func PackageWAV(segments [][]byte, sampleRate, channels int) ports.AudioPayload {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}

	size := 0
	for _, segment := range segments {
		size += len(segment)
	}

	blockAlign := channels * bitsPerSample / 8
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + size)

	buf.WriteString("RIFF")
	writeLE(&buf, uint32(36+size))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	writeLE(&buf, uint32(16))
	writeLE(&buf, uint16(1)) // PCM
	writeLE(&buf, uint16(channels))
	writeLE(&buf, uint32(sampleRate))
	writeLE(&buf, uint32(sampleRate*blockAlign))
	writeLE(&buf, uint16(blockAlign))
	writeLE(&buf, uint16(bitsPerSample))
	buf.WriteString("data")
	writeLE(&buf, uint32(size))
	for _, segment := range segments {
		buf.Write(segment)
	}

	return ports.AudioPayload{
		Data:        buf.Bytes(),
		ContentType: "audio/wav",
		Filename:    "recording.wav",
	}
}

// PCMFromWAV returns the sample data of a payload produced by PackageWAV.
func PCMFromWAV(data []byte) []byte {
	if len(data) < wavHeaderSize || string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return data
	}
	return data[wavHeaderSize:]
}

func writeLE(buf *bytes.Buffer, v any) {
	_ = binary.Write(buf, binary.LittleEndian, v)
}

// WAVEncoder implements ports.AudioEncoder.
type WAVEncoder struct{}

func (WAVEncoder) Encode(segments [][]byte, cfg ports.AudioConfig) ports.AudioPayload {
	return PackageWAV(segments, cfg.SampleRate, cfg.Channels)
}
