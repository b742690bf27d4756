package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/adampresley/adamgokit/s3"
	"github.com/adampresley/adamgokit/s3/createbucketoptions"
	"github.com/adampresley/adamgokit/s3/getoptions"
	"github.com/adampresley/adamgokit/s3/geturloptions"
	"github.com/adampresley/adamgokit/s3/listoptions"
	"github.com/adampresley/adamgokit/slices"
	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var (
	ErrInvalidImageName = errors.New("invalid image filename")

	imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}
)

/*
ImageStorer is the object store as the caption workflow sees it.
Objects are addressed by the image's original filename.
*/
type ImageStorer interface {
	Exists(ctx context.Context, filename string) (bool, error)
	Upload(ctx context.Context, filename string, content []byte) error
}

type ImageStoreServiceConfig struct {
	AwsRegion   string
	Bucket      string
	ImageFolder string
	S3Client    s3.S3Client
}

type ImageStoreService struct {
	awsRegion   string
	bucket      string
	imageFolder string
	s3Client    s3.S3Client

	statObject func(bucket, key string) (*s3.ObjectMetadata, error)
	putObject  func(bucket, key string, body io.Reader) error
}

func NewImageStoreService(config ImageStoreServiceConfig) ImageStoreService {
	if config.ImageFolder == "" {
		config.ImageFolder = "images"
	}

	client := config.S3Client

	return ImageStoreService{
		awsRegion:   config.AwsRegion,
		bucket:      config.Bucket,
		imageFolder: config.ImageFolder,
		s3Client:    client,
		statObject: func(bucket, key string) (*s3.ObjectMetadata, error) {
			return client.StatObject(bucket, key)
		},
		putObject: func(bucket, key string, body io.Reader) error {
			_, err := client.Put(bucket, key, body)
			return err
		},
	}
}

/*
ImageKey derives the object key for an image: <folder>/<filename>.
Only the base name is used so a client supplied path can't escape the
folder. Names that reduce to nothing, "." or ".." are rejected.
*/
func ImageKey(folder, filename string) (string, error) {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))

	switch name {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: '%s'", ErrInvalidImageName, filename)
	}

	return path.Join(folder, name), nil
}

func (s ImageStoreService) Key(filename string) (string, error) {
	return ImageKey(s.imageFolder, filename)
}

// Exists reports whether an object is already stored under the image's key.
func (s ImageStoreService) Exists(ctx context.Context, filename string) (bool, error) {
	var (
		err  error
		key  string
		stat *s3.ObjectMetadata
	)

	if key, err = s.Key(filename); err != nil {
		return false, err
	}

	if stat, err = s.statObject(s.bucket, key); err != nil {
		return false, fmt.Errorf("error retrieving metadata for image '%s': %w", key, err)
	}

	return stat != nil, nil
}

func (s ImageStoreService) Upload(ctx context.Context, filename string, content []byte) error {
	key, err := s.Key(filename)

	if err != nil {
		return err
	}

	if err = s.putObject(s.bucket, key, bytes.NewReader(content)); err != nil {
		return fmt.Errorf("error uploading image '%s' to S3: %w", key, err)
	}

	slog.Info("image uploaded to object store", "bucket", s.bucket, "key", key, "size", len(content))
	return nil
}

// Open streams a stored object by its full key. The caller closes the body.
func (s ImageStoreService) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	var (
		err    error
		object s3.GetObjectResponse
	)

	if object, err = s.s3Client.Get(s.bucket, key, getoptions.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("error retrieving image '%s': %w", key, err)
	}

	return object.Body, nil
}

func (s ImageStoreService) URL(filename string) (string, error) {
	key, err := s.Key(filename)

	if err != nil {
		return "", err
	}

	u, err := s.s3Client.GetUrl(s.bucket, key)

	if err != nil {
		return "", fmt.Errorf("error getting URL for image '%s': %w", key, err)
	}

	return u, nil
}

// List returns the images stored in the image folder with short lived URLs.
func (s ImageStoreService) List() ([]models.StoredImage, error) {
	var (
		err      error
		response s3.ListResponse
	)

	response, err = s.s3Client.List(
		s.bucket,
		s.imageFolder+"/",
		listoptions.WithGetUrls(),
		listoptions.WithGetAll(),
		listoptions.WithFilter(func(obj types.Object) bool {
			ext := strings.ToLower(filepath.Ext(aws.ToString(obj.Key)))
			return slices.IsInSlice(ext, imageExtensions)
		}),
		listoptions.WithGetUrlOptions(
			geturloptions.WithExpiration(time.Minute*30),
		),
	)

	if err != nil {
		return nil, fmt.Errorf("error listing stored images: %w", err)
	}

	result := make([]models.StoredImage, 0, len(response.Objects))

	for _, obj := range response.Objects {
		result = append(result, models.StoredImage{
			Key:      obj.Key,
			FileName: path.Base(obj.Key),
			URL:      obj.Url,
		})
	}

	return result, nil
}

func (s ImageStoreService) EnsureBucketExists() error {
	var (
		err    error
		exists bool
	)

	if exists, err = s.s3Client.BucketExists(s.bucket); err != nil {
		return fmt.Errorf("error ensuring bucket '%s' exists: %w", s.bucket, err)
	}

	if exists {
		return nil
	}

	slog.Info("creating bucket", "bucketName", s.bucket)

	err = s.s3Client.CreateBucket(
		s.bucket,
		createbucketoptions.WithRegion(s.awsRegion),
	)

	if err != nil {
		return fmt.Errorf("error creating bucket '%s': %w", s.bucket, err)
	}

	return nil
}
