package voice

import (
	"context"
	"sync"
)

const bufferChunkSize = 4096

// BufferStream replays pre-recorded audio (a downloaded voice note) as a
// Stream. All chunks are queued up front and the chunk channel is closed,
// so a capture session can drain it fully before assembly.
type BufferStream struct {
	ch    chan []byte
	level float64

	mu     sync.Mutex
	closed bool
}

func NewBufferStream(audio []byte) *BufferStream {
	n := (len(audio) + bufferChunkSize - 1) / bufferChunkSize
	ch := make(chan []byte, n)
	for off := 0; off < len(audio); off += bufferChunkSize {
		end := off + bufferChunkSize
		if end > len(audio) {
			end = len(audio)
		}
		ch <- audio[off:end]
	}
	close(ch)

	return &BufferStream{ch: ch, level: byteEnergy(audio)}
}

// byteEnergy is a rough mean-deviation energy of the encoded payload,
// scaled to [0,1]. Good enough for a level meter over replayed audio.
func byteEnergy(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}
	var sum float64
	for _, v := range b {
		d := float64(v) - 128
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / float64(len(b)) / 128
}

func (s *BufferStream) Chunks() <-chan []byte { return s.ch }

func (s *BufferStream) Level() float64 { return s.level }

func (s *BufferStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called; used by capture teardown tests.
func (s *BufferStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// BufferDevice opens a BufferStream over a fixed payload.
func BufferDevice(audio []byte) Device {
	return DeviceFunc(func(context.Context) (Stream, error) {
		return NewBufferStream(audio), nil
	})
}
