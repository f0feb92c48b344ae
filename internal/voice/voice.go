// Package voice owns the capture side of the conversation: opening an
// audio source, buffering its encoded chunks, and tearing everything down
// on every exit path.
package voice

import (
	"context"
	"errors"
)

var (
	// ErrPermissionDenied is returned by a Device when the platform
	// refuses microphone access.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceUnavailable is returned by a Device when no usable audio
	// input exists.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrAlreadyRecording is returned when a capture is started while a
	// previous one is still active. The caller is expected to disable the
	// control instead of racing captures.
	ErrAlreadyRecording = errors.New("a recording is already in progress")
)

// Stream is a live audio source. Chunks delivers encoded audio until the
// stream is closed; Level reports the current raw signal energy for the
// input-level meter.
type Stream interface {
	Chunks() <-chan []byte
	Level() float64
	Close() error
}

// Device opens a Stream. Implementations wrap the platform microphone or,
// for pre-recorded audio, an in-memory buffer.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// DeviceFunc adapts a function to the Device interface.
type DeviceFunc func(ctx context.Context) (Stream, error)

func (f DeviceFunc) Open(ctx context.Context) (Stream, error) { return f(ctx) }
