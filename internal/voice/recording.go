package voice

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

const levelPollInterval = 50 * time.Millisecond

// RecordingSession is one capture attempt: it owns the stream, the chunk
// buffer, and the level-monitor loop. A session never outlives a single
// capture; Stop or Cancel releases everything exactly once.
type RecordingSession struct {
	stream Stream
	logger *zap.Logger

	mu     sync.Mutex
	chunks [][]byte
	level  float64

	collectorDone chan struct{}
	monitorStop   chan struct{}
	teardown      sync.Once
}

func newRecordingSession(stream Stream, logger *zap.Logger) *RecordingSession {
	r := &RecordingSession{
		stream:        stream,
		logger:        logger,
		collectorDone: make(chan struct{}),
		monitorStop:   make(chan struct{}),
	}
	go r.collect()
	go r.monitor()
	return r
}

func (r *RecordingSession) collect() {
	defer close(r.collectorDone)
	for chunk := range r.stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		r.mu.Lock()
		r.chunks = append(r.chunks, buf)
		r.mu.Unlock()
	}
}

// monitor polls the stream's signal energy and keeps a normalized [0,1]
// level available for the input meter.
func (r *RecordingSession) monitor() {
	ticker := time.NewTicker(levelPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.monitorStop:
			return
		case <-ticker.C:
			raw := r.stream.Level()
			r.mu.Lock()
			r.level = normalizeLevel(raw)
			r.mu.Unlock()
		}
	}
}

func normalizeLevel(raw float64) float64 {
	if raw <= 0 || math.IsNaN(raw) {
		return 0
	}
	if raw >= 1 {
		return 1
	}
	return raw
}

// Level returns the most recent normalized input level.
func (r *RecordingSession) Level() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// release closes the stream and stops the monitor loop. It runs at most
// once no matter how many exit paths reach it.
func (r *RecordingSession) release() {
	r.teardown.Do(func() {
		close(r.monitorStop)
		if err := r.stream.Close(); err != nil {
			r.logger.Warn("failed to close audio stream", zap.Error(err))
		}
	})
}

// Stop finalizes the capture: the stream is closed, remaining buffered
// chunks are drained, and the assembled audio is returned. A capture with
// no audio returns nil so callers can skip transcription entirely.
func (r *RecordingSession) Stop(ctx context.Context) []byte {
	r.release()

	select {
	case <-r.collectorDone:
	case <-ctx.Done():
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, c := range r.chunks {
		total += len(c)
	}
	if total == 0 {
		return nil
	}
	audio := make([]byte, 0, total)
	for _, c := range r.chunks {
		audio = append(audio, c...)
	}
	return audio
}

// Cancel is the same teardown as Stop but the captured audio is discarded.
func (r *RecordingSession) Cancel() {
	r.release()
	<-r.collectorDone
	r.mu.Lock()
	r.chunks = nil
	r.mu.Unlock()
}

// Controller enforces the single-active-capture contract.
type Controller struct {
	logger *zap.Logger

	mu     sync.Mutex
	active *RecordingSession
}

func NewController(logger *zap.Logger) *Controller {
	return &Controller{logger: logger}
}

// Start opens the device and begins a new RecordingSession. Device errors
// are returned untouched so callers can map ErrPermissionDenied and
// ErrDeviceUnavailable to user-facing text.
func (c *Controller) Start(ctx context.Context, dev Device) (*RecordingSession, error) {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return nil, ErrAlreadyRecording
	}
	c.mu.Unlock()

	stream, err := dev.Open(ctx)
	if err != nil {
		return nil, err
	}

	rec := newRecordingSession(stream, c.logger)

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		rec.Cancel()
		return nil, ErrAlreadyRecording
	}
	c.active = rec
	c.mu.Unlock()
	return rec, nil
}

// Stop ends the active capture and returns the assembled audio, or nil if
// nothing was captured or no capture was active.
func (c *Controller) Stop(ctx context.Context) []byte {
	rec := c.take()
	if rec == nil {
		return nil
	}
	return rec.Stop(ctx)
}

// Cancel ends the active capture and discards its audio.
func (c *Controller) Cancel() {
	if rec := c.take(); rec != nil {
		rec.Cancel()
	}
}

func (c *Controller) take() *RecordingSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.active
	c.active = nil
	return rec
}
