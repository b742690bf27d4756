package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/adampresley/imagecaptioning/pkg/models"
)

// CaptionError is returned when the caption service call fails. Nothing was stored.
type CaptionError struct {
	Err error
}

func (e *CaptionError) Error() string {
	return "Failed to generate caption: " + e.Err.Error()
}

func (e *CaptionError) Unwrap() error {
	return e.Err
}

// StorageError is returned when the caption succeeded but the image could not be stored.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return "Failed to store image: " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

type CaptionWorkflowServicer interface {
	Run(ctx context.Context, state *models.HomeState) (WorkflowResult, error)
	NextCaption(ctx context.Context, state *models.HomeState) (models.CaptionResult, error)
}

type CaptionWorkflowServiceConfig struct {
	CaptionService CaptionServicer
	ImageStore     ImageStorer
}

type CaptionWorkflowService struct {
	captionService CaptionServicer
	imageStore     ImageStorer
}

type WorkflowResult struct {
	Caption models.CaptionResult

	// Applied is false when the image changed while the caption was being generated.
	Applied bool

	// Uploaded is true when the image was not in the store and has been written.
	Uploaded bool
}

func NewCaptionWorkflowService(config CaptionWorkflowServiceConfig) CaptionWorkflowService {
	return CaptionWorkflowService{
		captionService: config.CaptionService,
		imageStore:     config.ImageStore,
	}
}

/*
Run generates a caption for the selected image and then makes sure the
image is in the object store. The caption request is sent exactly once.
Storage is only touched after a caption came back, and an image that is
already stored is never uploaded again.
*/
func (s CaptionWorkflowService) Run(ctx context.Context, state *models.HomeState) (WorkflowResult, error) {
	var (
		err     error
		sub     models.Submission
		caption models.CaptionResult
		exists  bool
		result  WorkflowResult
	)

	if sub, err = state.BeginSubmit(); err != nil {
		return result, err
	}

	l := slog.With("filename", sub.Image.Filename, "sequence", sub.Sequence)

	if caption, err = s.captionService.Generate(ctx, sub.Image.Filename, sub.Image.Content, sub.Sequence); err != nil {
		l.Error("error generating caption", "error", err)
		state.Fail(sub)
		return result, &CaptionError{Err: err}
	}

	result.Caption = caption
	result.Applied = state.CompleteCaption(sub, caption)

	if !result.Applied {
		l.Info("image changed while the caption was generated. result dropped")
	}

	state.BeginPersist(sub)

	if exists, err = s.imageStore.Exists(ctx, sub.Image.Filename); err != nil {
		l.Error("error checking image store", "error", err)
		state.Fail(sub)
		return result, &StorageError{Err: err}
	}

	if !exists {
		if err = s.imageStore.Upload(ctx, sub.Image.Filename, sub.Image.Content); err != nil {
			l.Error("error uploading image", "error", err)
			state.Fail(sub)
			return result, &StorageError{Err: err}
		}

		result.Uploaded = true
	}

	state.Finish(sub)
	l.Info("caption workflow finished", "caption", caption.Caption, "index", caption.Index, "uploaded", result.Uploaded)

	return result, nil
}

/*
NextCaption cycles to the caption after the one currently shown. Cycling
needs a selected image and does nothing while a submission runs.
*/
func (s CaptionWorkflowService) NextCaption(ctx context.Context, state *models.HomeState) (models.CaptionResult, error) {
	var (
		err    error
		result models.CaptionResult
	)

	snapshot := state.Snapshot()

	if snapshot.Image == nil {
		return result, models.ErrNoImageSelected
	}

	if snapshot.InFlight {
		return result, models.ErrSubmissionInFlight
	}

	if result, err = s.captionService.Next(ctx, snapshot.CaptionIndex); err != nil {
		return result, &CaptionError{Err: err}
	}

	if !state.ApplyNextCaption(result) {
		return result, errors.New("image changed while cycling captions")
	}

	return result, nil
}
