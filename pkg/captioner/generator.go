package captioner

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultGeminiModel  = "gemini-1.5-flash"
	DefaultGeminiPrompt = "Write a single short sentence describing this image. Reply with the sentence only."
)

// Generator produces the caption for an uploaded image.
type Generator interface {
	Generate(ctx context.Context, image []byte, index int) (models.CaptionResult, error)
}

// CatalogGenerator ignores the image and returns the catalog caption for index.
type CatalogGenerator struct {
	catalog Catalog
}

func NewCatalogGenerator(catalog Catalog) CatalogGenerator {
	return CatalogGenerator{catalog: catalog}
}

func (g CatalogGenerator) Generate(ctx context.Context, image []byte, index int) (models.CaptionResult, error) {
	if err := ctx.Err(); err != nil {
		return models.CaptionResult{}, err
	}

	if g.catalog.Len() == 0 {
		return models.CaptionResult{}, ErrEmptyCatalog
	}

	return g.catalog.At(index), nil
}

type GeminiGeneratorConfig struct {
	ApiKey  string
	Catalog Catalog
	Model   string
	Prompt  string
}

/*
GeminiGenerator captions the image with Google Gemini. The index in the
response is folded into the catalog range the same way the catalog
generator does, so "next caption" cycling keeps working.
*/
type GeminiGenerator struct {
	apiKey  string
	catalog Catalog
	model   string
	prompt  string
}

func NewGeminiGenerator(config GeminiGeneratorConfig) GeminiGenerator {
	if config.Model == "" {
		config.Model = DefaultGeminiModel
	}

	if config.Prompt == "" {
		config.Prompt = DefaultGeminiPrompt
	}

	return GeminiGenerator{
		apiKey:  config.ApiKey,
		catalog: config.Catalog,
		model:   config.Model,
		prompt:  config.Prompt,
	}
}

func (g GeminiGenerator) Generate(ctx context.Context, image []byte, index int) (models.CaptionResult, error) {
	if g.apiKey == "" {
		return models.CaptionResult{}, fmt.Errorf("gemini API key is not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return models.CaptionResult{}, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)

	resp, err := model.GenerateContent(ctx, genai.ImageData(imageFormat(image), image), genai.Text(g.prompt))
	if err != nil {
		return models.CaptionResult{}, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return models.CaptionResult{}, fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return models.CaptionResult{}, fmt.Errorf("empty content returned from Gemini")
	}

	txt, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok || strings.TrimSpace(string(txt)) == "" {
		return models.CaptionResult{}, fmt.Errorf("unexpected response format from Gemini")
	}

	return models.CaptionResult{
		Caption: strings.TrimSpace(string(txt)),
		Index:   g.catalog.Index(index),
	}, nil
}

// imageFormat returns the image subtype Gemini expects, e.g. "png".
func imageFormat(image []byte) string {
	contentType := http.DetectContentType(image)

	if format, ok := strings.CutPrefix(contentType, "image/"); ok {
		return format
	}

	return "jpeg"
}
