package models

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrNoImageSelected    = errors.New("no image selected")
	ErrSubmissionInFlight = errors.New("caption generation already in progress")
)

type WorkflowPhase string

const (
	PhaseIdle         WorkflowPhase = "idle"
	PhaseSubmitting   WorkflowPhase = "submitting"
	PhaseCaptionReady WorkflowPhase = "caption-ready"
	PhasePersisting   WorkflowPhase = "persisting"
	PhaseDone         WorkflowPhase = "done"
	PhaseFailed       WorkflowPhase = "failed"
)

/*
HomeState holds everything the home view needs for one signed in user:
the selected image, the upload sequence counter, and the caption that
is currently displayed. Every exported method is a single transition and
is safe to call from concurrent requests.
*/
type HomeState struct {
	mu sync.Mutex

	image        *SelectedImage
	uploadCount  int
	caption      *CaptionResult
	captionIndex int
	autoCycle    bool
	inFlight     bool
	phase        WorkflowPhase
	lastActivity time.Time
}

/*
Submission is a snapshot of the state taken when a caption request
starts. Results are only applied while the snapshot is still current.
*/
type Submission struct {
	Image    *SelectedImage
	Sequence int
}

type HomeSnapshot struct {
	Image        *SelectedImage
	UploadCount  int
	Caption      *CaptionResult
	CaptionIndex int
	AutoCycle    bool
	InFlight     bool
	Phase        WorkflowPhase
	LastActivity time.Time
}

func NewHomeState() *HomeState {
	return &HomeState{
		captionIndex: -1,
		phase:        PhaseIdle,
		lastActivity: time.Now(),
	}
}

/*
SelectImage replaces the selected image. A new selection always clears
the caption, resets cycling, and bumps the upload counter by one.
*/
func (s *HomeState) SelectImage(image *SelectedImage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if image == nil {
		return
	}

	s.image = image
	s.caption = nil
	s.captionIndex = -1
	s.autoCycle = false
	s.uploadCount++
	s.phase = PhaseIdle
	s.touch()
}

// RemoveImage clears the preview, the caption, and the cycling state. The counter is kept.
func (s *HomeState) RemoveImage() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.image = nil
	s.caption = nil
	s.captionIndex = -1
	s.autoCycle = false
	s.phase = PhaseIdle
	s.touch()
}

func (s *HomeState) SetAutoCycle(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.autoCycle = enabled
	s.touch()
}

func (s *HomeState) BeginSubmit() (Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.image == nil {
		return Submission{}, ErrNoImageSelected
	}

	if s.inFlight {
		return Submission{}, ErrSubmissionInFlight
	}

	s.inFlight = true
	s.phase = PhaseSubmitting
	s.touch()

	return Submission{
		Image:    s.image,
		Sequence: s.uploadCount,
	}, nil
}

/*
CompleteCaption displays the caption for a submission. It returns false
when the user picked or removed the image while the request was running,
in which case the result is dropped.
*/
func (s *HomeState) CompleteCaption(sub Submission, result CaptionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.touch()

	if !s.isCurrent(sub) {
		return false
	}

	s.caption = &result
	s.captionIndex = result.Index
	s.phase = PhaseCaptionReady
	return true
}

func (s *HomeState) BeginPersist(sub Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isCurrent(sub) {
		s.phase = PhasePersisting
	}
}

// Fail marks the submission as failed. The image, counter and caption stay as they were.
func (s *HomeState) Fail(sub Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = false
	s.touch()

	if s.isCurrent(sub) {
		s.phase = PhaseFailed
	}
}

func (s *HomeState) Finish(sub Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.inFlight = false
	s.touch()

	if s.isCurrent(sub) {
		s.phase = PhaseDone
	}
}

/*
ApplyNextCaption shows a caption produced by cycling. Cycling requires
an image and is ignored while a submission is running.
*/
func (s *HomeState) ApplyNextCaption(result CaptionResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.image == nil || s.inFlight {
		return false
	}

	s.caption = &result
	s.captionIndex = result.Index
	s.touch()
	return true
}

func (s *HomeState) Snapshot() HomeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := HomeSnapshot{
		Image:        s.image,
		UploadCount:  s.uploadCount,
		CaptionIndex: s.captionIndex,
		AutoCycle:    s.autoCycle,
		InFlight:     s.inFlight,
		Phase:        s.phase,
		LastActivity: s.lastActivity,
	}

	if s.caption != nil {
		c := *s.caption
		result.Caption = &c
	}

	return result
}

func (s *HomeState) IdleSince(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return !s.inFlight && s.lastActivity.Before(cutoff)
}

func (s *HomeState) isCurrent(sub Submission) bool {
	return s.image != nil && s.image == sub.Image && s.uploadCount == sub.Sequence
}

func (s *HomeState) touch() {
	s.lastActivity = time.Now()
}
