package commands

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/adampresley/imagecaptioning/cmd/captionservice/internal/captions"
	"github.com/adampresley/imagecaptioning/pkg/captioner"
	"github.com/adampresley/imagecaptioning/pkg/services"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	controller := captions.NewCaptionController(captions.CaptionControllerConfig{
		Catalog:    captioner.DefaultCatalog(),
		UploadsDir: filepath.Join(t.TempDir(), "uploads"),
	})

	server := httptest.NewServer(newHandler(controller))

	t.Cleanup(func() {
		server.Close()
		controller.Stop()
	})

	return server
}

func TestCaptionClientAgainstHandler(t *testing.T) {
	server := newTestServer(t)
	client := services.NewCaptionService(services.CaptionServiceConfig{BaseURL: server.URL})

	generated, err := client.Generate(context.Background(), "cat.png", []byte("png bytes"), 1)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if generated.Index != 1 || generated.Caption != "A happy dog running in the park." {
		t.Errorf("Expected caption 1, got %+v", generated)
	}

	next, err := client.Next(context.Background(), 4)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if next.Index != 0 {
		t.Errorf("Expected next caption to wrap to 0, got %d", next.Index)
	}
}

func TestHandlerRoutes(t *testing.T) {
	server := newTestServer(t)

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{name: "heartbeat", method: http.MethodGet, path: "/heartbeat", expectedStatus: http.StatusOK},
		{name: "generate needs post", method: http.MethodGet, path: "/generate_caption", expectedStatus: http.StatusMethodNotAllowed},
		{name: "unknown path", method: http.MethodGet, path: "/nope", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest(tt.method, server.URL+tt.path, nil)
			req.Header.Set("Origin", "http://localhost:8081")

			resp, err := http.DefaultClient.Do(req)

			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}

			defer resp.Body.Close()

			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, resp.StatusCode)
			}

			if tt.expectedStatus == http.StatusOK && resp.Header.Get("Access-Control-Allow-Origin") != "*" {
				t.Errorf("Expected CORS to allow all origins, got %q", resp.Header.Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestNewGenerator(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := newGenerator(serveOptions{provider: ProviderCatalog}, captioner.DefaultCatalog()); err != nil {
		t.Errorf("Expected catalog provider, got %v", err)
	}

	if _, err := newGenerator(serveOptions{provider: ProviderGemini}, captioner.DefaultCatalog()); err == nil {
		t.Errorf("Expected an error for gemini without an API key")
	}

	if _, err := newGenerator(serveOptions{provider: ProviderGemini, geminiApiKey: "key"}, captioner.DefaultCatalog()); err != nil {
		t.Errorf("Expected gemini provider with a key, got %v", err)
	}

	if _, err := newGenerator(serveOptions{provider: "other"}, captioner.DefaultCatalog()); err == nil {
		t.Errorf("Expected an error for an unknown provider")
	}
}
