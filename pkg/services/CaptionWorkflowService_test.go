package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adampresley/imagecaptioning/pkg/models"
)

func selectImage(state *models.HomeState, filename string, content []byte) *models.SelectedImage {
	img := &models.SelectedImage{
		Filename:    filename,
		ContentType: "image/png",
		Content:     content,
		SelectedAt:  time.Now(),
	}

	state.SelectImage(img)
	return img
}

func TestRunCaptionsAndUploadsNewImage(t *testing.T) {
	captions := &fakeCaptionService{result: models.CaptionResult{Caption: "A happy dog running in the park.", Index: 1}}
	store := newFakeImageStore()

	service := NewCaptionWorkflowService(CaptionWorkflowServiceConfig{
		CaptionService: captions,
		ImageStore:     store,
	})

	state := models.NewHomeState()
	selectImage(state, "cat.png", []byte("png-bytes"))

	result, err := service.Run(context.Background(), state)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(captions.generateCalls) != 1 {
		t.Fatalf("Expected exactly one caption request, got %d", len(captions.generateCalls))
	}

	call := captions.generateCalls[0]

	if call.Filename != "cat.png" || call.CurrentIndex != 1 || string(call.Content) != "png-bytes" {
		t.Errorf("Expected cat.png with currentIndex 1, got %+v", call)
	}

	if len(store.uploads) != 1 || store.uploads[0] != "images/cat.png" {
		t.Errorf("Expected one upload to images/cat.png, got %v", store.uploads)
	}

	if !result.Uploaded || !result.Applied {
		t.Errorf("Expected result to be applied and uploaded, got %+v", result)
	}

	snapshot := state.Snapshot()

	if snapshot.Caption == nil || snapshot.Caption.Caption != "A happy dog running in the park." {
		t.Errorf("Expected caption to be displayed, got %+v", snapshot.Caption)
	}

	if snapshot.CaptionIndex != 1 {
		t.Errorf("Expected caption index 1, got %d", snapshot.CaptionIndex)
	}

	if snapshot.Phase != models.PhaseDone || snapshot.InFlight {
		t.Errorf("Expected done and not in flight, got %s / %v", snapshot.Phase, snapshot.InFlight)
	}
}

func TestRunSkipsUploadWhenImageAlreadyStored(t *testing.T) {
	captions := &fakeCaptionService{result: models.CaptionResult{Caption: "A cat sitting on a couch.", Index: 0}}
	store := newFakeImageStore()
	store.objects["images/cat.png"] = []byte("old")

	service := NewCaptionWorkflowService(CaptionWorkflowServiceConfig{
		CaptionService: captions,
		ImageStore:     store,
	})

	state := models.NewHomeState()
	selectImage(state, "cat.png", []byte("new"))

	for i := 0; i < 2; i++ {
		result, err := service.Run(context.Background(), state)

		if err != nil {
			t.Fatalf("Expected no error on run %d, got %v", i+1, err)
		}

		if result.Uploaded {
			t.Errorf("Expected no upload on run %d", i+1)
		}
	}

	if len(store.uploads) != 0 {
		t.Errorf("Expected zero uploads, got %v", store.uploads)
	}

	if string(store.objects["images/cat.png"]) != "old" {
		t.Errorf("Expected stored object to be left alone")
	}
}

func TestRunWithoutImageMakesNoCalls(t *testing.T) {
	captions := &fakeCaptionService{}
	store := newFakeImageStore()

	service := NewCaptionWorkflowService(CaptionWorkflowServiceConfig{
		CaptionService: captions,
		ImageStore:     store,
	})

	_, err := service.Run(context.Background(), models.NewHomeState())

	if !errors.Is(err, models.ErrNoImageSelected) {
		t.Errorf("Expected ErrNoImageSelected, got %v", err)
	}

	if len(captions.generateCalls) != 0 || len(store.existsCalls) != 0 {
		t.Errorf("Expected no network calls, got %d caption and %d store", len(captions.generateCalls), len(store.existsCalls))
	}
}

func TestRunCaptionFailureLeavesStateAndSkipsStorage(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "server error", err: errors.New("caption service returned status 500: boom")},
		{name: "missing caption", err: errors.New("caption service response has no caption")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captions := &fakeCaptionService{err: tt.err}
			store := newFakeImageStore()

			service := NewCaptionWorkflowService(CaptionWorkflowServiceConfig{
				CaptionService: captions,
				ImageStore:     store,
			})

			state := models.NewHomeState()
			img := selectImage(state, "dog.jpg", []byte("jpg"))
			state.ApplyNextCaption(models.CaptionResult{Caption: "previous", Index: 2})

			_, err := service.Run(context.Background(), state)

			var captionErr *CaptionError

			if !errors.As(err, &captionErr) {
				t.Fatalf("Expected a CaptionError, got %v", err)
			}

			if err.Error() != "Failed to generate caption: "+tt.err.Error() {
				t.Errorf("Expected alert text, got %q", err.Error())
			}

			if len(store.existsCalls) != 0 || len(store.uploads) != 0 {
				t.Errorf("Expected storage to be untouched")
			}

			snapshot := state.Snapshot()

			if snapshot.Image != img || snapshot.UploadCount != 1 {
				t.Errorf("Expected image and counter unchanged, got %+v", snapshot)
			}

			if snapshot.Caption == nil || snapshot.Caption.Caption != "previous" {
				t.Errorf("Expected previous caption to remain, got %+v", snapshot.Caption)
			}

			if snapshot.Phase != models.PhaseFailed || snapshot.InFlight {
				t.Errorf("Expected failed and not in flight, got %s / %v", snapshot.Phase, snapshot.InFlight)
			}
		})
	}
}

func TestRunStorageFailureKeepsCaption(t *testing.T) {
	tests := []struct {
		name      string
		existsErr error
		uploadErr error
	}{
		{name: "exists check fails", existsErr: errors.New("access denied")},
		{name: "upload fails", uploadErr: errors.New("quota exceeded")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captions := &fakeCaptionService{result: models.CaptionResult{Caption: "A puppy playing with a ball.", Index: 3}}
			store := newFakeImageStore()
			store.existsErr = tt.existsErr
			store.uploadErr = tt.uploadErr

			service := NewCaptionWorkflowService(CaptionWorkflowServiceConfig{
				CaptionService: captions,
				ImageStore:     store,
			})

			state := models.NewHomeState()
			selectImage(state, "puppy.png", []byte("png"))

			_, err := service.Run(context.Background(), state)

			var storageErr *StorageError

			if !errors.As(err, &storageErr) {
				t.Fatalf("Expected a StorageError, got %v", err)
			}

			snapshot := state.Snapshot()

			if snapshot.Caption == nil || snapshot.Caption.Caption != "A puppy playing with a ball." {
				t.Errorf("Expected caption to stay displayed, got %+v", snapshot.Caption)
			}

			if snapshot.InFlight {
				t.Errorf("Expected submission to be finished")
			}
		})
	}
}

func TestRunRejectsSecondSubmissionWhileInFlight(t *testing.T) {
	captions := &fakeCaptionService{
		result: models.CaptionResult{Caption: "A dog waiting by the door.", Index: 4},
		block:  make(chan struct{}),
	}
	store := newFakeImageStore()

	service := NewCaptionWorkflowService(CaptionWorkflowServiceConfig{
		CaptionService: captions,
		ImageStore:     store,
	})

	state := models.NewHomeState()
	selectImage(state, "door.png", []byte("png"))

	done := make(chan error, 1)

	go func() {
		_, err := service.Run(context.Background(), state)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)

	for captions.GenerateCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond * 5)
	}

	if _, err := service.Run(context.Background(), state); !errors.Is(err, models.ErrSubmissionInFlight) {
		t.Errorf("Expected ErrSubmissionInFlight, got %v", err)
	}

	close(captions.block)

	if err := <-done; err != nil {
		t.Fatalf("Expected first run to succeed, got %v", err)
	}

	if captions.GenerateCount() != 1 {
		t.Errorf("Expected one caption request, got %d", captions.GenerateCount())
	}
}

func TestRunDropsCaptionWhenImageChangesMidFlight(t *testing.T) {
	captions := &fakeCaptionService{
		result: models.CaptionResult{Caption: "A cat sitting on a couch.", Index: 0},
		block:  make(chan struct{}),
	}
	store := newFakeImageStore()

	service := NewCaptionWorkflowService(CaptionWorkflowServiceConfig{
		CaptionService: captions,
		ImageStore:     store,
	})

	state := models.NewHomeState()
	selectImage(state, "first.png", []byte("1"))

	done := make(chan WorkflowResult, 1)

	go func() {
		result, _ := service.Run(context.Background(), state)
		done <- result
	}()

	deadline := time.Now().Add(2 * time.Second)

	for captions.GenerateCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond * 5)
	}

	selectImage(state, "second.png", []byte("2"))
	close(captions.block)

	result := <-done

	if result.Applied {
		t.Errorf("Expected stale caption to be dropped")
	}

	snapshot := state.Snapshot()

	if snapshot.Caption != nil {
		t.Errorf("Expected no caption for the new image, got %+v", snapshot.Caption)
	}

	if snapshot.UploadCount != 2 {
		t.Errorf("Expected counter 2, got %d", snapshot.UploadCount)
	}

	if len(store.uploads) != 1 || store.uploads[0] != "images/first.png" {
		t.Errorf("Expected the submitted image to be stored, got %v", store.uploads)
	}
}

func TestNextCaption(t *testing.T) {
	captions := &fakeCaptionService{result: models.CaptionResult{Caption: "A happy dog running in the park.", Index: 1}}

	service := NewCaptionWorkflowService(CaptionWorkflowServiceConfig{
		CaptionService: captions,
		ImageStore:     newFakeImageStore(),
	})

	state := models.NewHomeState()

	if _, err := service.NextCaption(context.Background(), state); !errors.Is(err, models.ErrNoImageSelected) {
		t.Errorf("Expected ErrNoImageSelected, got %v", err)
	}

	selectImage(state, "cat.png", []byte("png"))

	result, err := service.NextCaption(context.Background(), state)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(captions.nextCalls) != 1 || captions.nextCalls[0] != -1 {
		t.Errorf("Expected next caption requested from -1, got %v", captions.nextCalls)
	}

	if result.Index != 1 || state.Snapshot().CaptionIndex != 1 {
		t.Errorf("Expected index 1 to be applied, got %d", state.Snapshot().CaptionIndex)
	}
}
