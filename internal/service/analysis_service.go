// Package service ties media loading, inference, orchestration state and
// history together for the transport layer.
package service

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"go-media-analyzer/internal/engine"
	apperrors "go-media-analyzer/internal/errors"
	"go-media-analyzer/internal/logger"
	"go-media-analyzer/internal/media"
	"go-media-analyzer/internal/observer"
	"go-media-analyzer/internal/orchestration"
	"go-media-analyzer/internal/repository"
	"go-media-analyzer/internal/store"
	"go-media-analyzer/internal/strategy"
	"go-media-analyzer/internal/thumbnail"
	"go-media-analyzer/internal/timeutil"
	"go-media-analyzer/internal/videoloop"
	"go-media-analyzer/pkg/models"
)

// AnalysisService defines the operations the HTTP and CLI surfaces use
type AnalysisService interface {
	LoadMedia(ctx context.Context, req models.LoadMediaRequest) (models.Dimensions, error)
	PushFrame(dataURL string) error
	AnalyzeOnce(ctx context.Context, mode models.AnalysisMode, expectedText string) (models.AnalysisResult, error)
	StartStream(ctx context.Context, modes []models.AnalysisMode) error
	StopStream()
	SaveCurrent(ctx context.Context, mode models.AnalysisMode) (*models.HistoryEntry, error)
	SaveCurrentAccepted(mode models.AnalysisMode) error
	SetActiveMode(mode models.AnalysisMode) error
	ClearResults()
	Reset()
	Snapshot() orchestration.Snapshot
	Close() error
}

// Options tunes timeouts and the stream clock
type Options struct {
	AnalysisTimeout   time.Duration
	MediaFetchTimeout time.Duration
	Clock             timeutil.Clock
	// TickInterval overrides the video loop tick; zero uses the default
	TickInterval time.Duration
}

// DefaultOptions matches the configuration defaults
func DefaultOptions() Options {
	return Options{
		AnalysisTimeout:   20 * time.Second,
		MediaFetchTimeout: 15 * time.Second,
		Clock:             timeutil.RealClock{},
	}
}

// analysisService implements AnalysisService
type analysisService struct {
	state      *orchestration.State
	engines    map[models.AnalysisMode]engine.Engine
	strategies *strategy.AnalysisContext
	settings   *store.SettingsStore
	history    *store.HistoryStore
	mediaRepo  repository.MediaRepository
	events     observer.Subject
	opts       Options
	log        *logrus.Entry

	// streams live until Close
	baseCtx context.Context
	cancel  context.CancelFunc
	// serializes media and stream changes
	mu sync.Mutex
}

// NewAnalysisService creates the service. Every mode needs an engine.
func NewAnalysisService(
	state *orchestration.State,
	engines map[models.AnalysisMode]engine.Engine,
	settings *store.SettingsStore,
	history *store.HistoryStore,
	mediaRepo repository.MediaRepository,
	events observer.Subject,
	opts Options,
) (AnalysisService, error) {
	for _, mode := range models.AllModes {
		if engines[mode] == nil {
			return nil, apperrors.NewInternalError("no engine for "+string(mode), nil)
		}
	}
	defaults := DefaultOptions()
	if opts.AnalysisTimeout <= 0 {
		opts.AnalysisTimeout = defaults.AnalysisTimeout
	}
	if opts.MediaFetchTimeout <= 0 {
		opts.MediaFetchTimeout = defaults.MediaFetchTimeout
	}
	if opts.Clock == nil {
		opts.Clock = defaults.Clock
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &analysisService{
		state:      state,
		engines:    engines,
		strategies: strategy.NewAnalysisContext(),
		settings:   settings,
		history:    history,
		mediaRepo:  mediaRepo,
		events:     events,
		opts:       opts,
		log:        logger.ForComponent("analysis_service"),
		baseCtx:    ctx,
		cancel:     cancel,
	}, nil
}

// LoadMedia replaces the media element. Any running stream is stopped and
// every mode's result is cleared.
func (s *analysisService) LoadMedia(ctx context.Context, req models.LoadMediaRequest) (models.Dimensions, error) {
	src, err := s.openSource(ctx, req)
	if err != nil {
		return models.Dimensions{}, err
	}

	s.mu.Lock()
	s.state.StopVideoStream()
	s.state.SetMediaElement(src)
	s.state.ClearAllResults()
	s.mu.Unlock()

	dims := src.Dimensions()
	s.log.WithFields(logrus.Fields{
		"live":   src.IsLive(),
		"width":  dims.Width,
		"height": dims.Height,
	}).Info("Media element loaded")
	return dims, nil
}

func (s *analysisService) openSource(ctx context.Context, req models.LoadMediaRequest) (media.Source, error) {
	if req.URL != "" && req.DataURL != "" {
		return nil, apperrors.NewValidationError("provide either url or dataURL, not both", nil)
	}

	if req.Live {
		buf := media.NewFrameBuffer()
		if req.DataURL != "" {
			img, err := s.decode(req.DataURL)
			if err != nil {
				return nil, err
			}
			buf.Publish(img)
		}
		return buf, nil
	}

	switch {
	case req.DataURL != "":
		img, err := s.decode(req.DataURL)
		if err != nil {
			return nil, err
		}
		return media.NewStillImage(img), nil
	case req.URL != "":
		fetchCtx, cancel := context.WithTimeout(ctx, s.opts.MediaFetchTimeout)
		defer cancel()
		img, err := s.mediaRepo.FetchImage(fetchCtx, req.URL)
		if err != nil {
			return nil, fetchError(err)
		}
		return media.NewStillImage(img), nil
	default:
		return nil, apperrors.NewValidationError("url or dataURL is required", nil)
	}
}

func (s *analysisService) decode(dataURL string) (image.Image, error) {
	img, err := s.mediaRepo.DecodeDataURL(dataURL)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid image data URL", err)
	}
	return img, nil
}

func fetchError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("media fetch timed out", err)
	case errors.Is(err, repository.ErrInvalidMediaURL):
		return apperrors.NewValidationError("invalid media URL", err)
	default:
		return apperrors.NewNotFoundError("media could not be fetched", err)
	}
}

// PushFrame publishes a new frame to a live media element
func (s *analysisService) PushFrame(dataURL string) error {
	buf, ok := s.state.Media().(*media.FrameBuffer)
	if !ok {
		return apperrors.NewValidationError("current media is not a live source", nil)
	}
	img, err := s.decode(dataURL)
	if err != nil {
		return err
	}
	buf.Publish(img)
	return nil
}

// currentFrame returns a frame from the loaded media element
func (s *analysisService) currentFrame() (image.Image, error) {
	src := s.state.Media()
	if src == nil {
		return nil, apperrors.NewNotFoundError("no media loaded", nil)
	}
	frame, err := src.CurrentFrame()
	if err != nil {
		return nil, apperrors.NewNotFoundError("no frame available yet", err)
	}
	return frame, nil
}

// ensureEngine initializes the mode's engine on first use, surfacing the
// model load in the mode's processing state. Status changes are conditional
// so a concurrent analysis that already owns the mode is never overwritten.
func (s *analysisService) ensureEngine(ctx context.Context, mode models.AnalysisMode) (engine.Engine, error) {
	e := s.engines[mode]
	if e.Ready() {
		return e, nil
	}

	loading := models.ProcessingState{Status: models.StatusLoading, Message: "Loading model"}
	s.state.SetProcessingStatusIf(mode, loading, models.StatusIdle, models.StatusError)
	if err := e.Initialize(ctx); err != nil {
		s.log.WithError(err).WithField("mode", mode).Error("Engine failed to initialize")
		failed := models.ProcessingState{Status: models.StatusError, Message: apperrors.UserMessage(mode, err)}
		s.state.SetProcessingStatusIf(mode, failed, models.StatusLoading, models.StatusIdle, models.StatusError)
		return nil, err
	}
	s.state.SetProcessingStatusIf(mode, models.IdleState(), models.StatusLoading)
	return e, nil
}

// AnalyzeOnce runs one inference on the current frame and stores the
// filtered result
func (s *analysisService) AnalyzeOnce(ctx context.Context, mode models.AnalysisMode, expectedText string) (models.AnalysisResult, error) {
	strat, err := s.strategies.For(mode)
	if err != nil {
		return nil, apperrors.NewValidationError("unknown analysis mode", err)
	}
	epoch := s.state.Epoch()
	frame, err := s.currentFrame()
	if err != nil {
		return nil, err
	}
	e, err := s.ensureEngine(ctx, mode)
	if err != nil {
		return nil, err
	}
	if !s.state.TryBeginProcessing(mode, epoch, "Analyzing") {
		if s.state.Epoch() != epoch {
			return nil, apperrors.NewConflictError("media changed before "+mode.DisplayName()+" started", nil)
		}
		return nil, apperrors.NewConflictError(mode.DisplayName()+" is already running", nil)
	}

	settings := s.settings.Get()
	inferCtx, cancel := context.WithTimeout(ctx, s.opts.AnalysisTimeout)
	defer cancel()

	started := s.opts.Clock.Now()
	raw, err := e.Infer(inferCtx, frame, strat.EngineOptions(settings, expectedText))
	took := s.opts.Clock.Since(started)
	if err != nil {
		return nil, s.fail(mode, epoch, inferenceError(err), took)
	}

	result, err := strat.Apply(raw, settings)
	if err != nil {
		return nil, s.fail(mode, epoch, apperrors.NewInferenceError("engine returned an unexpected result", err), took)
	}
	applied, err := s.state.SetResultIf(mode, epoch, result, took)
	if err != nil {
		return nil, s.fail(mode, epoch, apperrors.NewInternalError("result could not be stored", err), took)
	}
	if !applied {
		s.log.WithField("mode", mode).Info("Discarded analysis of replaced media")
		return nil, apperrors.NewConflictError("media changed during "+mode.DisplayName(), nil)
	}

	s.log.WithFields(logrus.Fields{
		"mode":     mode,
		"strategy": strat.GetStrategyName(),
		"took_ms":  took.Milliseconds(),
	}).Info("Analysis completed")
	return result, nil
}

func inferenceError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("inference timed out", err)
	default:
		return apperrors.NewInferenceError("inference failed", err)
	}
}

func (s *analysisService) fail(mode models.AnalysisMode, epoch uint64, err error, took time.Duration) error {
	s.log.WithError(err).WithField("mode", mode).Warn("Analysis failed")
	if s.state.SetErrorIf(mode, epoch, apperrors.UserMessage(mode, err)) && s.events != nil {
		s.events.NotifyObservers(context.Background(), observer.Event{
			Type:         observer.InferenceFailed,
			Mode:         mode,
			Duration:     took,
			ErrorMessage: err.Error(),
		})
	}
	return err
}

// StartStream starts one video loop per mode at the configured frame rate.
// A stream that is already running is replaced.
func (s *analysisService) StartStream(ctx context.Context, modes []models.AnalysisMode) error {
	if len(modes) == 0 {
		return apperrors.NewValidationError("at least one mode is required", nil)
	}
	src := s.state.Media()
	if src == nil {
		return apperrors.NewNotFoundError("no media loaded", nil)
	}

	engines := make(map[models.AnalysisMode]engine.Engine, len(modes))
	for _, mode := range modes {
		if !mode.Valid() {
			return apperrors.NewValidationError("unknown analysis mode "+string(mode), nil)
		}
		e, err := s.ensureEngine(ctx, mode)
		if err != nil {
			return err
		}
		engines[mode] = e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fps := s.settings.Get().Performance.VideoFPS
	s.state.StartVideoStream(fps)

	var stops []orchestration.StopFunc
	for mode, e := range engines {
		stop, err := videoloop.Start(s.baseCtx, s.state, src, s.inferFunc(mode, e), videoloop.Options{
			Mode:         mode,
			FPS:          fps,
			TickInterval: s.opts.TickInterval,
			Clock:        s.opts.Clock,
			Events:       s.events,
			OnResult:     s.resultFunc(mode),
		})
		if err != nil {
			for _, st := range stops {
				st()
			}
			s.state.StopVideoStream()
			return apperrors.NewInternalError("video loop could not start", err)
		}
		stops = append(stops, stop)
	}

	s.state.SetVideoLoopHandle(func() {
		for _, stop := range stops {
			stop()
		}
	})
	s.log.WithFields(logrus.Fields{"fps": fps, "modes": modes}).Info("Video stream started")
	return nil
}

func (s *analysisService) inferFunc(mode models.AnalysisMode, e engine.Engine) videoloop.InferFunc {
	return func(ctx context.Context, frame image.Image) (models.AnalysisResult, error) {
		strat, err := s.strategies.For(mode)
		if err != nil {
			return nil, err
		}
		inferCtx, cancel := context.WithTimeout(ctx, s.opts.AnalysisTimeout)
		defer cancel()
		result, err := e.Infer(inferCtx, frame, strat.EngineOptions(s.settings.Get(), ""))
		if err != nil {
			return nil, inferenceError(err)
		}
		return result, nil
	}
}

func (s *analysisService) resultFunc(mode models.AnalysisMode) videoloop.ResultFunc {
	return func(epoch uint64, result models.AnalysisResult, took time.Duration) (bool, error) {
		strat, err := s.strategies.For(mode)
		if err != nil {
			return false, err
		}
		filtered, err := strat.Apply(result, s.settings.Get())
		if err != nil {
			return false, apperrors.NewInferenceError("engine returned an unexpected result", err)
		}
		return s.state.SetResultIf(mode, epoch, filtered, took)
	}
}

// StopStream stops every running loop. In-flight inferences still deliver.
func (s *analysisService) StopStream() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.StopVideoStream()
}

// SaveCurrent stores the mode's current result with the current frame
func (s *analysisService) SaveCurrent(ctx context.Context, mode models.AnalysisMode) (*models.HistoryEntry, error) {
	input, err := s.historyInput(mode)
	if err != nil {
		return nil, err
	}
	entry := s.history.AddToHistory(ctx, input)
	if entry == nil {
		return nil, apperrors.NewStorageUnavailableError("history entry could not be saved", nil)
	}
	return entry, nil
}

// SaveCurrentAccepted queues the save without waiting for it to be durable
func (s *analysisService) SaveCurrentAccepted(mode models.AnalysisMode) error {
	input, err := s.historyInput(mode)
	if err != nil {
		return err
	}
	if !s.history.AddToHistoryAccepted(input, nil) {
		return apperrors.NewStorageUnavailableError("history writer is shut down", nil)
	}
	return nil
}

func (s *analysisService) historyInput(mode models.AnalysisMode) (models.HistoryInput, error) {
	if !mode.Valid() {
		return models.HistoryInput{}, apperrors.NewValidationError("unknown analysis mode "+string(mode), nil)
	}
	result, ok := s.state.Result(mode)
	if !ok {
		return models.HistoryInput{}, apperrors.NewNotFoundError("no "+mode.DisplayName()+" result to save", nil)
	}
	frame, err := s.currentFrame()
	if err != nil {
		return models.HistoryInput{}, err
	}
	dataURL, err := thumbnail.EncodePNGDataURL(frame)
	if err != nil {
		return models.HistoryInput{}, apperrors.NewInternalError("frame could not be encoded", err)
	}
	b := frame.Bounds()
	return models.HistoryInput{
		AnalysisType:    mode,
		ImageDataURL:    dataURL,
		Results:         result,
		ImageDimensions: models.Dimensions{Width: b.Dx(), Height: b.Dy()},
	}, nil
}

func (s *analysisService) SetActiveMode(mode models.AnalysisMode) error {
	if err := s.state.SetActiveMode(mode); err != nil {
		return apperrors.NewValidationError("unknown analysis mode", err)
	}
	return nil
}

func (s *analysisService) ClearResults() {
	s.state.ClearAllResults()
}

// Reset stops any stream and restores the initial state
func (s *analysisService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ResetAll()
}

func (s *analysisService) Snapshot() orchestration.Snapshot {
	return s.state.Snapshot()
}

// Close stops streaming and releases every engine
func (s *analysisService) Close() error {
	s.StopStream()
	s.cancel()

	var errs []error
	for mode, e := range s.engines {
		if err := e.Dispose(); err != nil {
			s.log.WithError(err).WithField("mode", mode).Warn("Engine dispose failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
