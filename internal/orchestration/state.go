// Package orchestration owns the per-mode processing state, results, media
// element and video stream record.
package orchestration

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go-media-analyzer/internal/media"
	"go-media-analyzer/internal/observer"
	"go-media-analyzer/pkg/models"
)

// StopFunc cancels a running video loop. It must be safe to call more than once.
type StopFunc func()

// VideoStream describes the active stream
type VideoStream struct {
	IsActive  bool
	TargetFPS int
	// LoopHandle is attached by the scheduler after the stream is recorded
	LoopHandle StopFunc
}

// Snapshot is a point-in-time copy of the aggregate
type Snapshot struct {
	ActiveMode  models.AnalysisMode
	Processing  map[models.AnalysisMode]models.ProcessingState
	Results     map[models.AnalysisMode]models.AnalysisResult
	Media       media.Source
	VideoStream *VideoStream
}

// State is the orchestration aggregate. All mutation goes through its methods.
type State struct {
	mu         sync.RWMutex
	activeMode models.AnalysisMode
	processing map[models.AnalysisMode]models.ProcessingState
	results    map[models.AnalysisMode]models.AnalysisResult
	media      media.Source
	stream     *VideoStream

	// epoch advances whenever results stop describing the media: a new
	// media element, a full clear or a reset. Results computed under an
	// older epoch are dropped.
	epoch uint64
	// inflight survives clears so a mode never runs two inferences at once
	inflight map[models.AnalysisMode]bool

	events observer.Subject
}

// NewState creates the initial aggregate: detection active, all modes idle.
// events may be nil.
func NewState(events observer.Subject) *State {
	s := &State{events: events, inflight: make(map[models.AnalysisMode]bool, len(models.AllModes))}
	s.reset()
	return s
}

func (s *State) reset() {
	s.activeMode = models.ModeDetection
	s.processing = make(map[models.AnalysisMode]models.ProcessingState, len(models.AllModes))
	for _, m := range models.AllModes {
		s.processing[m] = models.IdleState()
	}
	s.results = make(map[models.AnalysisMode]models.AnalysisResult, len(models.AllModes))
	s.media = nil
	s.stream = nil
}

func (s *State) notify(event observer.Event) {
	if s.events == nil {
		return
	}
	s.events.NotifyObservers(context.Background(), event)
}

// SetActiveMode changes the foregrounded mode only
func (s *State) SetActiveMode(mode models.AnalysisMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown analysis mode %q", mode)
	}
	s.mu.Lock()
	s.activeMode = mode
	s.mu.Unlock()
	return nil
}

// SetProcessingStatus replaces the mode's processing state. Complete can only
// be reached through SetResult, so it is rejected here.
func (s *State) SetProcessingStatus(mode models.AnalysisMode, state models.ProcessingState) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown analysis mode %q", mode)
	}
	if state.Status == models.StatusComplete {
		return fmt.Errorf("mode %s: complete status requires a result", mode)
	}
	s.mu.Lock()
	s.processing[mode] = state
	s.mu.Unlock()

	s.notifyProcessing(mode, state)
	return nil
}

// SetProcessingStatusIf replaces the mode's state only while its current
// status is one of from, and reports whether it did
func (s *State) SetProcessingStatusIf(mode models.AnalysisMode, state models.ProcessingState, from ...models.ProcessingStatus) bool {
	if state.Status == models.StatusComplete {
		return false
	}
	s.mu.Lock()
	current, ok := s.processing[mode]
	if !ok || !slices.Contains(from, current.Status) {
		s.mu.Unlock()
		return false
	}
	s.processing[mode] = state
	s.mu.Unlock()

	s.notifyProcessing(mode, state)
	return true
}

func (s *State) notifyProcessing(mode models.AnalysisMode, state models.ProcessingState) {
	s.notify(observer.Event{
		Type:         observer.ProcessingChanged,
		Mode:         mode,
		Success:      state.Status != models.StatusError,
		ErrorMessage: errorMessage(state),
		Metadata:     map[string]interface{}{"status": state.Status},
	})
}

func errorMessage(state models.ProcessingState) string {
	if state.Status == models.StatusError {
		return state.Message
	}
	return ""
}

// Epoch returns the current media epoch. Capture it before reading a frame
// and hand it to TryBeginProcessing.
func (s *State) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// TryBeginProcessing atomically moves mode to Processing for a frame read
// under epoch. It refuses when the epoch has moved on or the mode already
// has an inference running, even one whose status was cleared since. It
// reports whether the caller now owns the mode's slot; the owner must finish
// with SetResultIf, SetErrorIf or AbandonProcessing.
func (s *State) TryBeginProcessing(mode models.AnalysisMode, epoch uint64, message string) bool {
	s.mu.Lock()
	current, ok := s.processing[mode]
	if !ok || epoch != s.epoch || s.inflight[mode] || current.Status == models.StatusProcessing {
		s.mu.Unlock()
		return false
	}
	s.inflight[mode] = true
	s.processing[mode] = models.ProcessingState{Status: models.StatusProcessing, Message: message}
	s.mu.Unlock()

	s.notify(observer.Event{
		Type:     observer.ProcessingChanged,
		Mode:     mode,
		Success:  true,
		Metadata: map[string]interface{}{"status": models.StatusProcessing},
	})
	return true
}

// SetResultIf completes an inference begun under epoch. A stale result is
// dropped without touching the mode's status and false is returned.
func (s *State) SetResultIf(mode models.AnalysisMode, epoch uint64, result models.AnalysisResult, took time.Duration) (bool, error) {
	if err := checkResult(mode, result); err != nil {
		return false, err
	}

	s.mu.Lock()
	delete(s.inflight, mode)
	if epoch != s.epoch {
		s.mu.Unlock()
		return false, nil
	}
	s.results[mode] = result
	s.processing[mode] = models.ProcessingState{Status: models.StatusComplete}
	s.mu.Unlock()

	s.notify(observer.Event{Type: observer.ResultChanged, Mode: mode, Success: true, Duration: took})
	return true, nil
}

// SetErrorIf records a failed inference begun under epoch. Stale failures
// only release the slot.
func (s *State) SetErrorIf(mode models.AnalysisMode, epoch uint64, message string) bool {
	state := models.ProcessingState{Status: models.StatusError, Message: message}

	s.mu.Lock()
	delete(s.inflight, mode)
	if epoch != s.epoch {
		s.mu.Unlock()
		return false
	}
	s.processing[mode] = state
	s.mu.Unlock()

	s.notifyProcessing(mode, state)
	return true
}

// AbandonProcessing releases a slot without a result. The mode returns to
// Idle unless the epoch has moved on.
func (s *State) AbandonProcessing(mode models.AnalysisMode, epoch uint64) {
	s.mu.Lock()
	delete(s.inflight, mode)
	if epoch != s.epoch || s.processing[mode].Status != models.StatusProcessing {
		s.mu.Unlock()
		return
	}
	s.processing[mode] = models.IdleState()
	s.mu.Unlock()

	s.notifyProcessing(mode, models.IdleState())
}

func checkResult(mode models.AnalysisMode, result models.AnalysisResult) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown analysis mode %q", mode)
	}
	if result == nil {
		return fmt.Errorf("mode %s: nil result", mode)
	}
	if result.Mode() != mode {
		return fmt.Errorf("mode %s: result is for %s", mode, result.Mode())
	}
	return nil
}

// SetResult stores result and marks the mode Complete in one step
func (s *State) SetResult(mode models.AnalysisMode, result models.AnalysisResult) error {
	return s.SetResultWithDuration(mode, result, 0)
}

// SetResultWithDuration is SetResult carrying the inference time for observers
func (s *State) SetResultWithDuration(mode models.AnalysisMode, result models.AnalysisResult, took time.Duration) error {
	if err := checkResult(mode, result); err != nil {
		return err
	}

	s.mu.Lock()
	s.results[mode] = result
	s.processing[mode] = models.ProcessingState{Status: models.StatusComplete}
	s.mu.Unlock()

	s.notify(observer.Event{Type: observer.ResultChanged, Mode: mode, Success: true, Duration: took})
	return nil
}

// ClearResult removes the mode's result and returns it to Idle
func (s *State) ClearResult(mode models.AnalysisMode) {
	s.mu.Lock()
	delete(s.results, mode)
	if _, ok := s.processing[mode]; ok {
		s.processing[mode] = models.IdleState()
	}
	s.mu.Unlock()

	s.notify(observer.Event{Type: observer.ResultsCleared, Mode: mode, Success: true})
}

// ClearAllResults removes every result and idles every mode at once.
// Inferences still running will not deliver.
func (s *State) ClearAllResults() {
	s.mu.Lock()
	s.epoch++
	s.results = make(map[models.AnalysisMode]models.AnalysisResult, len(models.AllModes))
	for _, m := range models.AllModes {
		s.processing[m] = models.IdleState()
	}
	s.mu.Unlock()

	s.notify(observer.Event{Type: observer.ResultsCleared, Success: true})
}

// SetMediaElement replaces the media handle. It does not clear results;
// callers pair it with ClearAllResults.
func (s *State) SetMediaElement(src media.Source) {
	s.mu.Lock()
	s.media = src
	s.epoch++
	s.mu.Unlock()

	meta := map[string]interface{}{"present": src != nil}
	if src != nil {
		d := src.Dimensions()
		meta["width"], meta["height"], meta["live"] = d.Width, d.Height, src.IsLive()
	}
	s.notify(observer.Event{Type: observer.MediaChanged, Success: true, Metadata: meta})
}

// StartVideoStream records an active stream at fps, cancelling any loop
// that was already running. The loop handle is attached afterwards.
func (s *State) StartVideoStream(fps int) {
	s.mu.Lock()
	previous := s.stream
	s.stream = &VideoStream{IsActive: true, TargetFPS: fps}
	s.mu.Unlock()

	if previous != nil {
		if previous.LoopHandle != nil {
			previous.LoopHandle()
		}
		s.notify(observer.Event{Type: observer.StreamStopped, Success: true})
	}
	s.notify(observer.Event{Type: observer.StreamStarted, Success: true, Metadata: map[string]interface{}{"fps": fps}})
}

// SetVideoLoopHandle attaches the scheduler's stop function to the active
// stream. Without an active stream the handle is invoked immediately so the
// loop cannot be orphaned.
func (s *State) SetVideoLoopHandle(handle StopFunc) {
	s.mu.Lock()
	if s.stream == nil {
		s.mu.Unlock()
		if handle != nil {
			handle()
		}
		return
	}
	s.stream.LoopHandle = handle
	s.mu.Unlock()
}

// StopVideoStream cancels the loop, if any, and clears the stream record
func (s *State) StopVideoStream() {
	s.mu.Lock()
	previous := s.stream
	s.stream = nil
	s.mu.Unlock()

	if previous == nil {
		return
	}
	if previous.LoopHandle != nil {
		previous.LoopHandle()
	}
	s.notify(observer.Event{Type: observer.StreamStopped, Success: true})
}

// ResetAll cancels any loop and restores the initial aggregate
func (s *State) ResetAll() {
	s.StopVideoStream()

	s.mu.Lock()
	s.reset()
	s.epoch++
	s.mu.Unlock()

	s.notify(observer.Event{Type: observer.ResultsCleared, Success: true})
	s.notify(observer.Event{Type: observer.MediaChanged, Success: true, Metadata: map[string]interface{}{"present": false}})
}

// Snapshot returns a copy of the aggregate
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ActiveMode: s.activeMode,
		Processing: make(map[models.AnalysisMode]models.ProcessingState, len(s.processing)),
		Results:    make(map[models.AnalysisMode]models.AnalysisResult, len(s.results)),
		Media:      s.media,
	}
	for k, v := range s.processing {
		snap.Processing[k] = v
	}
	for k, v := range s.results {
		snap.Results[k] = v
	}
	if s.stream != nil {
		stream := *s.stream
		snap.VideoStream = &stream
	}
	return snap
}

// ActiveMode returns the foregrounded mode
func (s *State) ActiveMode() models.AnalysisMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeMode
}

// Processing returns the mode's processing state
func (s *State) Processing(mode models.AnalysisMode) models.ProcessingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processing[mode]
}

// Result returns the mode's result, if any
func (s *State) Result(mode models.AnalysisMode) (models.AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[mode]
	return r, ok
}

// Media returns the current media element, or nil
func (s *State) Media() media.Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.media
}

// IsStreaming reports whether a video stream is active
func (s *State) IsStreaming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stream != nil && s.stream.IsActive
}

// AnyProcessing reports whether any mode is currently Processing
func (s *State) AnyProcessing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.processing {
		if p.Status == models.StatusProcessing {
			return true
		}
	}
	return false
}

// HasAnyResults reports whether any mode holds a result
func (s *State) HasAnyResults() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results) > 0
}
