package captions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adampresley/imagecaptioning/pkg/captioner"
	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/alitto/pond/v2"
)

type CaptionHandlers interface {
	GenerateCaption(w http.ResponseWriter, r *http.Request)
	NextCaption(w http.ResponseWriter, r *http.Request)
	Heartbeat(w http.ResponseWriter, r *http.Request)
}

type CaptionControllerConfig struct {
	Catalog       captioner.Catalog
	Generator     captioner.Generator
	MaxConcurrent int
	MaxDelay      time.Duration
	MaxUploadMB   int64
	MinDelay      time.Duration
	UploadsDir    string
}

/*
CaptionController serves the caption endpoint. Generation runs on a
bounded pool so a burst of uploads can't start unlimited Gemini calls.
*/
type CaptionController struct {
	catalog        captioner.Catalog
	generator      captioner.Generator
	maxDelay       time.Duration
	maxUploadBytes int64
	minDelay       time.Duration
	pool           pond.ResultPool[models.CaptionResult]
	uploadsDir     string

	sleep func(ctx context.Context, d time.Duration) error
}

func NewCaptionController(config CaptionControllerConfig) *CaptionController {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 16
	}

	if config.MaxDelay < config.MinDelay {
		config.MaxDelay = config.MinDelay
	}

	if config.UploadsDir == "" {
		config.UploadsDir = "uploads"
	}

	if config.Generator == nil {
		config.Generator = captioner.NewCatalogGenerator(config.Catalog)
	}

	return &CaptionController{
		catalog:        config.Catalog,
		generator:      config.Generator,
		maxDelay:       config.MaxDelay,
		maxUploadBytes: config.MaxUploadMB << 20,
		minDelay:       config.MinDelay,
		pool:           pond.NewResultPool[models.CaptionResult](config.MaxConcurrent),
		uploadsDir:     config.UploadsDir,
		sleep:          sleepContext,
	}
}

// Stop waits for running generations to finish and refuses new ones.
func (c *CaptionController) Stop() {
	c.pool.StopAndWait()
}

/*
POST /generate_caption
*/
func (c *CaptionController) GenerateCaption(w http.ResponseWriter, r *http.Request) {
	var (
		err          error
		content      []byte
		currentIndex int
		result       models.CaptionResult
	)

	r.Body = http.MaxBytesReader(w, r.Body, c.maxUploadBytes+(1<<20))

	if err = r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		slog.Info("invalid caption request", "error", err)
		writeJson(w, http.StatusBadRequest, errorResponse{Error: "Invalid upload"})
		return
	}

	file, header, err := r.FormFile("image")

	if err != nil {
		/*
		 * A file input submitted with nothing chosen arrives as a plain
		 * form value with an empty filename.
		 */
		if r.MultipartForm != nil && len(r.MultipartForm.Value["image"]) > 0 {
			writeJson(w, http.StatusBadRequest, errorResponse{Error: "No selected file"})
			return
		}

		writeJson(w, http.StatusBadRequest, errorResponse{Error: "No image part"})
		return
	}

	defer file.Close()

	filename := SanitizeFilename(header.Filename)

	if filename == "" {
		writeJson(w, http.StatusBadRequest, errorResponse{Error: "No selected file"})
		return
	}

	if currentIndex, err = parseIndex(r.FormValue("currentIndex"), 0); err != nil {
		writeJson(w, http.StatusBadRequest, errorResponse{Error: "Invalid currentIndex"})
		return
	}

	if content, err = io.ReadAll(file); err != nil {
		slog.Error("error reading uploaded image", "filename", filename, "error", err)
		writeJson(w, http.StatusBadRequest, errorResponse{Error: "Unable to read image"})
		return
	}

	if err = c.saveUpload(filename, content); err != nil {
		slog.Error("error saving upload", "filename", filename, "error", err)
		writeJson(w, http.StatusInternalServerError, errorResponse{Error: "Unable to save image"})
		return
	}

	ctx := r.Context()

	task := c.pool.SubmitErr(func() (models.CaptionResult, error) {
		if err := c.sleep(ctx, c.delay()); err != nil {
			return models.CaptionResult{}, err
		}

		return c.generator.Generate(ctx, content, currentIndex)
	})

	if result, err = task.Wait(); err != nil {
		if ctx.Err() != nil {
			slog.Info("caption request cancelled", "filename", filename)
			return
		}

		slog.Error("error generating caption", "filename", filename, "error", err)
		writeJson(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	slog.Info("caption generated", "filename", filename, "index", result.Index)
	writeJson(w, http.StatusOK, captionResponse{Caption: result.Caption, Index: result.Index})
}

/*
POST /next_caption
*/
func (c *CaptionController) NextCaption(w http.ResponseWriter, r *http.Request) {
	var (
		request struct {
			CurrentIndex *int `json:"currentIndex"`
		}
	)

	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&request); err != nil && !errors.Is(err, io.EOF) {
		writeJson(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	current := -1

	if request.CurrentIndex != nil {
		current = *request.CurrentIndex
	}

	if c.catalog.Len() == 0 {
		writeJson(w, http.StatusInternalServerError, errorResponse{Error: captioner.ErrEmptyCatalog.Error()})
		return
	}

	result := c.catalog.Next(current)
	writeJson(w, http.StatusOK, captionResponse{Caption: result.Caption, Index: result.Index})
}

/*
GET /heartbeat
*/
func (c *CaptionController) Heartbeat(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK"))
}

func (c *CaptionController) saveUpload(filename string, content []byte) error {
	if err := os.MkdirAll(c.uploadsDir, 0o755); err != nil {
		return fmt.Errorf("error creating uploads directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(c.uploadsDir, filename), content, 0o644); err != nil {
		return fmt.Errorf("error writing upload '%s': %w", filename, err)
	}

	return nil
}

func (c *CaptionController) delay() time.Duration {
	spread := c.maxDelay - c.minDelay

	if spread <= 0 {
		return c.minDelay
	}

	return c.minDelay + rand.N(spread+1)
}

/*
SanitizeFilename reduces a client supplied filename to a safe base name.
Characters outside letters, digits, dot, dash and underscore are dropped,
whitespace becomes an underscore, and leading dots are removed.
*/
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))

	var b strings.Builder

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune('_')
		}
	}

	return strings.TrimLeft(b.String(), "._")
}

func parseIndex(value string, fallback int) (int, error) {
	value = strings.TrimSpace(value)

	if value == "" {
		return fallback, nil
	}

	return strconv.Atoi(value)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
