package audio

import (
	"fmt"
	"log/slog"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSink records every sample to a 16-bit mono WAV file.
type WAVSink struct {
	file       *os.File
	encoder    *wav.Encoder
	sampleRate int
	buf        goaudio.IntBuffer
	written    int
	err        error
}

// NewWAVSink creates the file at path. Close must be called to finish the
// header.
func NewWAVSink(path string, sampleRate int) (*WAVSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create wav file: %w", err)
	}
	return &WAVSink{
		file:       f,
		encoder:    wav.NewEncoder(f, sampleRate, 16, 1, 1),
		sampleRate: sampleRate,
		buf: goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
			SourceBitDepth: 16,
		},
	}, nil
}

func (w *WAVSink) WriteSamples(samples []int16, sampleRate int) {
	if w.err != nil || len(samples) == 0 {
		return
	}
	if sampleRate != w.sampleRate {
		slog.Warn("Dropping samples with a different rate", "expected", w.sampleRate, "actual", sampleRate)
		return
	}

	w.buf.Data = w.buf.Data[:0]
	for _, s := range samples {
		w.buf.Data = append(w.buf.Data, int(s))
	}
	if err := w.encoder.Write(&w.buf); err != nil {
		w.err = fmt.Errorf("failed to write wav samples: %w", err)
		slog.Error("WAV capture stopped", "error", err)
		return
	}
	w.written += len(samples)
}

// Written is the number of samples recorded so far.
func (w *WAVSink) Written() int {
	return w.written
}

// Close finalizes the header and closes the file.
func (w *WAVSink) Close() error {
	encErr := w.encoder.Close()
	fileErr := w.file.Close()
	if encErr != nil {
		return fmt.Errorf("failed to finish wav file: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close wav file: %w", fileErr)
	}
	return w.err
}
