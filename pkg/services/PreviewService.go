package services

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/nfnt/resize"
)

type PreviewServicer interface {
	Thumbnail(img *models.SelectedImage) ([]byte, error)
}

type PreviewServiceConfig struct {
	MaxSize uint
	Quality int
}

type PreviewService struct {
	maxSize uint
	quality int
}

func NewPreviewService(config PreviewServiceConfig) PreviewService {
	if config.MaxSize == 0 {
		config.MaxSize = 400
	}

	if config.Quality <= 0 {
		config.Quality = 85
	}

	return PreviewService{
		maxSize: config.MaxSize,
		quality: config.Quality,
	}
}

// Thumbnail renders the selected image as a JPEG no larger than maxSize on its longest edge.
func (s PreviewService) Thumbnail(img *models.SelectedImage) ([]byte, error) {
	var (
		err     error
		decoded image.Image
		buf     bytes.Buffer
	)

	if img == nil {
		return nil, models.ErrNoImageSelected
	}

	if decoded, _, err = image.Decode(bytes.NewReader(img.Content)); err != nil {
		return nil, fmt.Errorf("error decoding image '%s': %w", img.Filename, err)
	}

	if err = jpeg.Encode(&buf, s.resize(decoded), &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("error encoding preview for '%s': %w", img.Filename, err)
	}

	return buf.Bytes(), nil
}

func (s PreviewService) resize(img image.Image) image.Image {
	bounds := img.Bounds()
	width := uint(bounds.Dx())
	height := uint(bounds.Dy())

	if width <= s.maxSize && height <= s.maxSize {
		return img
	}

	var newWidth, newHeight uint

	if width > height {
		newWidth = s.maxSize
		newHeight = uint(float64(height) * (float64(s.maxSize) / float64(width)))
	} else {
		newHeight = s.maxSize
		newWidth = uint(float64(width) * (float64(s.maxSize) / float64(height)))
	}

	return resize.Resize(newWidth, newHeight, img, resize.Lanczos3)
}
