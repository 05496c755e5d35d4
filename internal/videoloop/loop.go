// Package videoloop samples a live media source at a bounded rate and runs
// one mode's inference against each accepted frame.
package videoloop

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	apperrors "go-media-analyzer/internal/errors"
	"go-media-analyzer/internal/logger"
	"go-media-analyzer/internal/media"
	"go-media-analyzer/internal/observer"
	"go-media-analyzer/internal/orchestration"
	"go-media-analyzer/internal/timeutil"
	"go-media-analyzer/pkg/models"
)

// DefaultTickInterval approximates a 60Hz display refresh
const DefaultTickInterval = time.Second / 60

// InferFunc runs one inference on frame. The engine must already be initialized.
type InferFunc func(ctx context.Context, frame image.Image) (models.AnalysisResult, error)

// ResultFunc receives every successful inference together with the media
// epoch its frame was read under. It reports whether the result was applied;
// results for media that has since been replaced are not.
type ResultFunc func(epoch uint64, result models.AnalysisResult, took time.Duration) (bool, error)

// Options configures a loop
type Options struct {
	Mode         models.AnalysisMode
	FPS          int
	TickInterval time.Duration
	Clock        timeutil.Clock
	// Events receives inference_failed notifications; may be nil
	Events observer.Subject
	// OnResult defaults to storing the result on the orchestration state
	OnResult ResultFunc
}

// Loop is one mode's scheduler instance
type Loop struct {
	mode      models.AnalysisMode
	interval  time.Duration
	tickEvery time.Duration
	clock     timeutil.Clock
	state     *orchestration.State
	source    media.Source
	infer     InferFunc
	onResult  ResultFunc
	events    observer.Subject
	log       *logrus.Entry

	ctx      context.Context
	stopped  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
	inflight sync.WaitGroup

	// touched only from the tick path
	lastAccepted time.Time
	accepted     bool
}

// New validates opts and builds a loop without starting it
func New(ctx context.Context, state *orchestration.State, source media.Source, infer InferFunc, opts Options) (*Loop, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("videoloop: unknown mode %q", opts.Mode)
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("videoloop: fps must be positive, got %d", opts.FPS)
	}
	if state == nil || source == nil || infer == nil {
		return nil, fmt.Errorf("videoloop: state, source and infer are required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}

	l := &Loop{
		mode:      opts.Mode,
		interval:  time.Second / time.Duration(opts.FPS),
		tickEvery: opts.TickInterval,
		clock:     opts.Clock,
		state:     state,
		source:    source,
		infer:     infer,
		onResult:  opts.OnResult,
		events:    opts.Events,
		log:       logger.ForComponent("videoloop").WithField("mode", opts.Mode),
		ctx:       ctx,
		done:      make(chan struct{}),
	}
	if l.onResult == nil {
		l.onResult = func(epoch uint64, result models.AnalysisResult, took time.Duration) (bool, error) {
			return state.SetResultIf(l.mode, epoch, result, took)
		}
	}
	return l, nil
}

// Start builds a loop and begins ticking. The returned function stops it.
func Start(ctx context.Context, state *orchestration.State, source media.Source, infer InferFunc, opts Options) (orchestration.StopFunc, error) {
	l, err := New(ctx, state, source, infer, opts)
	if err != nil {
		return nil, err
	}
	l.Run()
	return l.Stop, nil
}

// Run starts the tick goroutine
func (l *Loop) Run() {
	ticker := l.clock.NewTicker(l.tickEvery)
	l.log.WithFields(logrus.Fields{
		"fps":           int(time.Second / l.interval),
		"tick_interval": l.tickEvery,
	}).Debug("Video loop started")

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-l.done:
				return
			case <-l.ctx.Done():
				l.Stop()
				return
			case now := <-ticker.C():
				l.tick(now)
			}
		}
	}()
}

// Stop prevents further ticks. An inference already running is allowed to
// finish and its result is still delivered.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.stopped.Store(true)
		close(l.done)
		l.log.Debug("Video loop stopped")
	})
}

// Wait blocks until no inference started by this loop is running
func (l *Loop) Wait() {
	l.inflight.Wait()
}

func (l *Loop) tick(now time.Time) {
	if l.stopped.Load() {
		return
	}
	if l.accepted && now.Sub(l.lastAccepted) < l.interval {
		return
	}
	l.lastAccepted = now
	l.accepted = true

	epoch := l.state.Epoch()
	frame, err := l.source.CurrentFrame()
	if err != nil {
		// live sources have nothing to show before the first frame
		l.log.WithError(err).Debug("Skipping tick without a frame")
		return
	}
	if !l.state.TryBeginProcessing(l.mode, epoch, "Analyzing frame") {
		return
	}
	// the media may have been replaced between the stop check and the epoch read
	if l.stopped.Load() {
		l.state.AbandonProcessing(l.mode, epoch)
		return
	}

	l.inflight.Add(1)
	go l.analyze(epoch, frame)
}

func (l *Loop) analyze(epoch uint64, frame image.Image) {
	defer l.inflight.Done()

	started := l.clock.Now()
	result, err := l.safeInfer(frame)
	took := l.clock.Since(started)
	if err == nil {
		var applied bool
		applied, err = l.onResult(epoch, result, took)
		if err == nil && !applied {
			l.log.WithField("duration", took).Debug("Dropped result for replaced media")
		}
	}
	if err != nil {
		l.fail(epoch, err, took)
	}
}

func (l *Loop) safeInfer(frame image.Image) (result models.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.NewInferenceError("inference panicked", fmt.Errorf("%v", r))
		}
	}()
	return l.infer(l.ctx, frame)
}

func (l *Loop) fail(epoch uint64, err error, took time.Duration) {
	l.log.WithError(err).WithField("duration", took).Warn("Frame inference failed")

	if !l.state.SetErrorIf(l.mode, epoch, apperrors.UserMessage(l.mode, err)) {
		return
	}
	if l.events != nil {
		l.events.NotifyObservers(context.Background(), observer.Event{
			Type:         observer.InferenceFailed,
			Mode:         l.mode,
			Duration:     took,
			Success:      false,
			ErrorMessage: err.Error(),
		})
	}
}
