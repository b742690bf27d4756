package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adampresley/imagecaptioning/pkg/models"
)

type CaptionServicer interface {
	Generate(ctx context.Context, filename string, content []byte, currentIndex int) (models.CaptionResult, error)
	Next(ctx context.Context, currentIndex int) (models.CaptionResult, error)
}

type CaptionServiceConfig struct {
	BaseURL    string
	HttpClient *http.Client
	Timeout    time.Duration
}

/*
CaptionService talks to the caption endpoint. Generate sends the image
as multipart form data and expects {"caption": "...", "index": n} back.
*/
type CaptionService struct {
	baseURL    string
	httpClient *http.Client
}

func NewCaptionService(config CaptionServiceConfig) CaptionService {
	if config.Timeout <= 0 {
		config.Timeout = time.Minute
	}

	if config.HttpClient == nil {
		config.HttpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return CaptionService{
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		httpClient: config.HttpClient,
	}
}

func (s CaptionService) Generate(ctx context.Context, filename string, content []byte, currentIndex int) (models.CaptionResult, error) {
	var (
		err  error
		body bytes.Buffer
		part io.Writer
		req  *http.Request
	)

	writer := multipart.NewWriter(&body)

	if part, err = writer.CreateFormFile("image", filepath.Base(filename)); err != nil {
		return models.CaptionResult{}, fmt.Errorf("error creating image form part: %w", err)
	}

	if _, err = part.Write(content); err != nil {
		return models.CaptionResult{}, fmt.Errorf("error writing image form part: %w", err)
	}

	if err = writer.WriteField("currentIndex", strconv.Itoa(currentIndex)); err != nil {
		return models.CaptionResult{}, fmt.Errorf("error writing currentIndex field: %w", err)
	}

	if err = writer.Close(); err != nil {
		return models.CaptionResult{}, fmt.Errorf("error closing multipart writer: %w", err)
	}

	if req, err = http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/generate_caption", &body); err != nil {
		return models.CaptionResult{}, fmt.Errorf("error creating caption request: %w", err)
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	return s.do(req)
}

// Next asks the caption service for the caption after currentIndex, wrapping around at the end.
func (s CaptionService) Next(ctx context.Context, currentIndex int) (models.CaptionResult, error) {
	var (
		err error
		b   []byte
		req *http.Request
	)

	if b, err = json.Marshal(map[string]int{"currentIndex": currentIndex}); err != nil {
		return models.CaptionResult{}, fmt.Errorf("error encoding next caption request: %w", err)
	}

	if req, err = http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/next_caption", bytes.NewReader(b)); err != nil {
		return models.CaptionResult{}, fmt.Errorf("error creating next caption request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s CaptionService) do(req *http.Request) (models.CaptionResult, error) {
	var (
		err     error
		resp    *http.Response
		b       []byte
		payload struct {
			Caption *string `json:"caption"`
			Index   int     `json:"index"`
			Error   string  `json:"error"`
		}
	)

	if resp, err = s.httpClient.Do(req); err != nil {
		return models.CaptionResult{}, fmt.Errorf("error calling caption service: %w", err)
	}

	defer resp.Body.Close()

	if b, err = io.ReadAll(io.LimitReader(resp.Body, 1<<20)); err != nil {
		return models.CaptionResult{}, fmt.Errorf("error reading caption response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = json.Unmarshal(b, &payload)

		if payload.Error != "" {
			return models.CaptionResult{}, fmt.Errorf("caption service returned status %d: %s", resp.StatusCode, payload.Error)
		}

		return models.CaptionResult{}, fmt.Errorf("caption service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if err = json.Unmarshal(b, &payload); err != nil {
		return models.CaptionResult{}, fmt.Errorf("error decoding caption response: %w", err)
	}

	if payload.Caption == nil || strings.TrimSpace(*payload.Caption) == "" {
		return models.CaptionResult{}, fmt.Errorf("caption service response has no caption")
	}

	return models.CaptionResult{
		Caption: *payload.Caption,
		Index:   payload.Index,
	}, nil
}
