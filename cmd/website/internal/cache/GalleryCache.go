package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync/atomic"
	"time"

	"github.com/adampresley/adamgokit/s3"
	"github.com/adampresley/adamgokit/s3/getoptions"
	"github.com/adampresley/adamgokit/s3/geturloptions"
	"github.com/adampresley/adamgokit/s3/listoptions"
	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/adampresley/imagecaptioning/pkg/services"
	"github.com/alitto/pond/v2"
)

type GalleryCacher interface {
	CreateCache()
	List() ([]models.StoredImage, error)
}

type GalleryCacheConfig struct {
	AwsBucket       string
	ImageStore      services.ImageStoreService
	MaxCacheWorkers int
	PreviewService  services.PreviewServicer
	S3Client        s3.S3Client
	ShutdownCtx     context.Context
	ThumbnailFolder string
}

/*
GalleryCache keeps a thumbnail next to every image that has been
captioned and stored, and lists the gallery shown on the home page.
*/
type GalleryCache struct {
	awsBucket       string
	imageStore      services.ImageStoreService
	maxCacheWorkers int
	previewService  services.PreviewServicer
	s3Client        s3.S3Client
	shutdownCtx     context.Context
	thumbnailFolder string
	running         *atomic.Bool
}

func NewGalleryCache(config GalleryCacheConfig) GalleryCache {
	if config.MaxCacheWorkers <= 0 {
		config.MaxCacheWorkers = 4
	}

	if config.ThumbnailFolder == "" {
		config.ThumbnailFolder = "thumbnails"
	}

	return GalleryCache{
		awsBucket:       config.AwsBucket,
		imageStore:      config.ImageStore,
		maxCacheWorkers: config.MaxCacheWorkers,
		previewService:  config.PreviewService,
		s3Client:        config.S3Client,
		shutdownCtx:     config.ShutdownCtx,
		thumbnailFolder: config.ThumbnailFolder,
		running:         &atomic.Bool{},
	}
}

// CreateCache renders missing or stale thumbnails. Overlapping runs are skipped.
func (c GalleryCache) CreateCache() {
	var (
		err       error
		originals []models.StoredImage
		created   atomic.Int32
	)

	if !c.running.CompareAndSwap(false, true) {
		slog.Info("gallery cache already running. skipping...")
		return
	}

	defer c.running.Store(false)

	if originals, err = c.imageStore.List(); err != nil {
		slog.Error("error listing stored images", "error", err)
		return
	}

	slog.Info("checking gallery thumbnails...", "numImages", len(originals), "bucket", c.awsBucket)

	pool := pond.NewPool(c.maxCacheWorkers, pond.WithContext(c.shutdownCtx))

	for _, original := range originals {
		thumbnailKey := c.thumbnailKey(original.FileName)

		if c.doesThumbnailExist(original.Key, thumbnailKey) {
			continue
		}

		pool.Submit(func() {
			if err := c.createThumbnail(original, thumbnailKey); err != nil {
				slog.Error("error creating gallery thumbnail", "key", original.Key, "error", err)
				return
			}

			created.Add(1)
		})
	}

	_ = pool.Stop().Wait()
	slog.Info("gallery cache finished", "created", created.Load())
}

/*
List returns the stored images. Images that already have a thumbnail
get its URL so the gallery doesn't download full size originals.
*/
func (c GalleryCache) List() ([]models.StoredImage, error) {
	var (
		err        error
		originals  []models.StoredImage
		thumbnails s3.ListResponse
	)

	if originals, err = c.imageStore.List(); err != nil {
		return nil, err
	}

	thumbnails, err = c.s3Client.List(
		c.awsBucket,
		c.thumbnailFolder+"/",
		listoptions.WithGetUrls(),
		listoptions.WithGetAll(),
		listoptions.WithGetUrlOptions(
			geturloptions.WithExpiration(time.Minute*30),
		),
	)

	if err != nil {
		slog.Error("error listing gallery thumbnails", "error", err)
		return originals, nil
	}

	byName := make(map[string]string, len(thumbnails.Objects))

	for _, obj := range thumbnails.Objects {
		byName[path.Base(obj.Key)] = obj.Url
	}

	for i := range originals {
		originals[i].ThumbnailURL = byName[path.Base(c.thumbnailKey(originals[i].FileName))]
	}

	return originals, nil
}

// Thumbnails are always JPEG, so the key carries a .jpg suffix whatever the original's type.
func (c GalleryCache) thumbnailKey(fileName string) string {
	return path.Join(c.thumbnailFolder, fileName+".jpg")
}

func (c GalleryCache) doesThumbnailExist(originalKey, thumbnailKey string) bool {
	var (
		err           error
		originalStat  *s3.ObjectMetadata
		thumbnailStat *s3.ObjectMetadata
	)

	if thumbnailStat, err = c.s3Client.StatObject(c.awsBucket, thumbnailKey); err != nil {
		slog.Error("error retrieving metadata for thumbnail", "key", thumbnailKey, "error", err)
		return false
	}

	if thumbnailStat == nil {
		return false
	}

	if originalStat, err = c.s3Client.StatObject(c.awsBucket, originalKey); err != nil || originalStat == nil {
		return true
	}

	return !thumbnailStat.LastModified.Before(originalStat.LastModified)
}

func (c GalleryCache) createThumbnail(original models.StoredImage, thumbnailKey string) error {
	var (
		err       error
		object    s3.GetObjectResponse
		content   []byte
		thumbnail []byte
	)

	object, err = c.s3Client.Get(
		c.awsBucket,
		original.Key,
		getoptions.WithContext(c.shutdownCtx),
	)

	if err != nil {
		return fmt.Errorf("error retrieving original image %s: %w", original.Key, err)
	}

	defer object.Body.Close()

	if content, err = io.ReadAll(object.Body); err != nil {
		return fmt.Errorf("error reading original image %s: %w", original.Key, err)
	}

	thumbnail, err = c.previewService.Thumbnail(&models.SelectedImage{
		Filename:    original.FileName,
		ContentType: object.ContentType,
		Content:     content,
	})

	if err != nil {
		return fmt.Errorf("error resizing image: %w", err)
	}

	if _, err = c.s3Client.Put(c.awsBucket, thumbnailKey, bytes.NewReader(thumbnail)); err != nil {
		return fmt.Errorf("error uploading thumbnail to S3: %w", err)
	}

	slog.Info("updated gallery thumbnail", "thumbnailKey", thumbnailKey)
	return nil
}
