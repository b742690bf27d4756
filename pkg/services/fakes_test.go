package services

import (
	"context"
	"sync"

	"github.com/adampresley/imagecaptioning/pkg/models"
)

type generateCall struct {
	Filename     string
	Content      []byte
	CurrentIndex int
}

type fakeCaptionService struct {
	mu sync.Mutex

	generateCalls []generateCall
	nextCalls     []int
	result        models.CaptionResult
	err           error

	// block, when set, holds Generate until it is closed.
	block chan struct{}
}

func (f *fakeCaptionService) Generate(ctx context.Context, filename string, content []byte, currentIndex int) (models.CaptionResult, error) {
	f.mu.Lock()
	f.generateCalls = append(f.generateCalls, generateCall{Filename: filename, Content: content, CurrentIndex: currentIndex})
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	return f.result, f.err
}

func (f *fakeCaptionService) Next(ctx context.Context, currentIndex int) (models.CaptionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextCalls = append(f.nextCalls, currentIndex)
	return f.result, f.err
}

func (f *fakeCaptionService) GenerateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.generateCalls)
}

type fakeImageStore struct {
	mu sync.Mutex

	objects     map[string][]byte
	existsCalls []string
	uploads     []string
	existsErr   error
	uploadErr   error
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{
		objects: map[string][]byte{},
	}
}

func (f *fakeImageStore) Exists(ctx context.Context, filename string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.existsCalls = append(f.existsCalls, filename)

	if f.existsErr != nil {
		return false, f.existsErr
	}

	key, err := ImageKey("images", filename)

	if err != nil {
		return false, err
	}

	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeImageStore) Upload(ctx context.Context, filename string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.uploadErr != nil {
		return f.uploadErr
	}

	key, err := ImageKey("images", filename)

	if err != nil {
		return err
	}

	f.uploads = append(f.uploads, key)
	f.objects[key] = content
	return nil
}
