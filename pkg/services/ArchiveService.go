package services

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/adampresley/imagecaptioning/pkg/models"
)

// ArchiveSource is the part of the image store an archive is built from.
type ArchiveSource interface {
	List() ([]models.StoredImage, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type ArchiveServicer interface {
	WriteArchive(ctx context.Context, w io.Writer) (int, error)
}

type ArchiveServiceConfig struct {
	Source ArchiveSource
}

type ArchiveService struct {
	source ArchiveSource
}

func NewArchiveService(config ArchiveServiceConfig) ArchiveService {
	return ArchiveService{
		source: config.Source,
	}
}

/*
WriteArchive streams every stored image into a ZIP written to w and
returns how many were added. Images that can't be read are skipped and
logged. Nothing is buffered beyond one image copy.
*/
func (s ArchiveService) WriteArchive(ctx context.Context, w io.Writer) (int, error) {
	var (
		err    error
		images []models.StoredImage
		added  int
	)

	if images, err = s.source.List(); err != nil {
		return 0, fmt.Errorf("error listing images for archive: %w", err)
	}

	zipWriter := zip.NewWriter(w)
	seen := map[string]struct{}{}

	for _, img := range images {
		if err = ctx.Err(); err != nil {
			_ = zipWriter.Close()
			return added, err
		}

		name := path.Base(img.Key)

		if _, ok := seen[name]; ok {
			continue
		}

		if err = s.addImage(ctx, zipWriter, img.Key, name); err != nil {
			slog.Error("failed to add image to archive", "key", img.Key, "error", err)
			continue
		}

		seen[name] = struct{}{}
		added++
	}

	if err = zipWriter.Close(); err != nil {
		return added, fmt.Errorf("error closing archive: %w", err)
	}

	return added, nil
}

func (s ArchiveService) addImage(ctx context.Context, zipWriter *zip.Writer, key, name string) error {
	src, err := s.source.Open(ctx, key)

	if err != nil {
		return err
	}

	defer src.Close()

	dest, err := zipWriter.Create(name)

	if err != nil {
		return fmt.Errorf("error creating '%s' in archive: %w", name, err)
	}

	if _, err = io.Copy(dest, src); err != nil {
		return fmt.Errorf("error copying '%s' into archive: %w", name, err)
	}

	return nil
}
