// Package audio assembles raw PCM buffers into playable WAV containers.
//
// Every buffer handled here is assumed to share one format: linear PCM,
// 16-bit little-endian samples, mono, at the provider's fixed sample
// rate. The assembler does not resample or reconcile mismatched inputs;
// feeding it buffers of different formats produces garbled audio. That
// is a documented precondition, not a guarded error path.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// HeaderSize is the byte length of the standard RIFF/WAVE header written
// for PCM data: RIFF descriptor, fmt sub-chunk and data sub-chunk header.
const HeaderSize = 44

const (
	bitDepth       = 16
	bytesPerSample = 2
)

var ErrNoBuffers = errors.New("no audio buffers to merge")

// Wrap encodes one raw PCM buffer into a WAV container whose declared
// RIFF and data sizes exactly match the payload.
func Wrap(pcm []byte, sampleRate, channels int) ([]byte, error) {
	if len(pcm)%bytesPerSample != 0 {
		return nil, fmt.Errorf("pcm length %d is not sample aligned", len(pcm))
	}
	if sampleRate <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid format: rate=%d channels=%d", sampleRate, channels)
	}

	samples := make([]int, len(pcm)/bytesPerSample)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:])))
	}

	sink := &bufferSeeker{}
	enc := wav.NewEncoder(sink, sampleRate, bitDepth, channels, 1)
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}
	return sink.Bytes(), nil
}

// Merge concatenates raw PCM buffers in order and wraps the result in a
// single container. Merging one buffer is equivalent to Wrap.
func Merge(buffers [][]byte, sampleRate, channels int) ([]byte, error) {
	if len(buffers) == 0 {
		return nil, ErrNoBuffers
	}
	total := 0
	for _, b := range buffers {
		total += len(b)
	}
	joined := make([]byte, 0, total)
	for _, b := range buffers {
		joined = append(joined, b...)
	}
	return Wrap(joined, sampleRate, channels)
}

// Duration derives playback seconds from a container's byte length.
func Duration(container []byte, sampleRate, channels int) float64 {
	payload := len(container) - HeaderSize
	if payload <= 0 || sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return float64(payload) / float64(sampleRate*channels*bytesPerSample)
}

// PCMDuration derives playback seconds from a raw sample buffer.
func PCMDuration(pcm []byte, sampleRate, channels int) float64 {
	if len(pcm) <= 0 || sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return float64(len(pcm)) / float64(sampleRate*channels*bytesPerSample)
}
