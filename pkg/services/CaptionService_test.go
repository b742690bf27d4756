package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCaptionServiceGenerate(t *testing.T) {
	var (
		gotFilename string
		gotContent  string
		gotIndex    string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/generate_caption" {
			t.Errorf("Expected POST /generate_caption, got %s %s", r.Method, r.URL.Path)
		}

		file, header, err := r.FormFile("image")

		if err != nil {
			t.Errorf("Expected an image part, got %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		defer file.Close()

		b, _ := io.ReadAll(file)
		gotFilename = header.Filename
		gotContent = string(b)
		gotIndex = r.FormValue("currentIndex")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"caption":"A sleepy cat lounging in the sun.","index":2}`))
	}))
	defer server.Close()

	service := NewCaptionService(CaptionServiceConfig{BaseURL: server.URL + "/"})

	result, err := service.Generate(context.Background(), "cat.png", []byte("png-bytes"), 7)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if gotFilename != "cat.png" || gotContent != "png-bytes" || gotIndex != "7" {
		t.Errorf("Expected cat.png/png-bytes/7, got %s/%s/%s", gotFilename, gotContent, gotIndex)
	}

	if result.Caption != "A sleepy cat lounging in the sun." || result.Index != 2 {
		t.Errorf("Expected caption and index 2, got %+v", result)
	}
}

func TestCaptionServiceGenerateErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		errContains string
	}{
		{name: "error status with message", status: http.StatusBadRequest, body: `{"error":"No image part"}`, errContains: "No image part"},
		{name: "error status with text", status: http.StatusInternalServerError, body: "boom", errContains: "status 500: boom"},
		{name: "malformed json", status: http.StatusOK, body: "{not json", errContains: "error decoding caption response"},
		{name: "missing caption", status: http.StatusOK, body: `{"index":1}`, errContains: "no caption"},
		{name: "empty caption", status: http.StatusOK, body: `{"caption":"  ","index":1}`, errContains: "no caption"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			service := NewCaptionService(CaptionServiceConfig{BaseURL: server.URL})
			_, err := service.Generate(context.Background(), "cat.png", []byte("x"), 0)

			if err == nil {
				t.Fatalf("Expected an error")
			}

			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Expected error to contain %q, got %q", tt.errContains, err.Error())
			}
		})
	}
}

func TestCaptionServiceGenerateUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	service := NewCaptionService(CaptionServiceConfig{BaseURL: url})

	if _, err := service.Generate(context.Background(), "cat.png", []byte("x"), 0); err == nil {
		t.Errorf("Expected an error for an unreachable service")
	}
}

func TestCaptionServiceNext(t *testing.T) {
	var request struct {
		CurrentIndex int `json:"currentIndex"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/next_caption" {
			t.Errorf("Expected /next_caption, got %s", r.URL.Path)
		}

		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			t.Errorf("Expected JSON body, got %v", err)
		}

		_, _ = w.Write([]byte(`{"caption":"A cat sitting on a couch.","index":0}`))
	}))
	defer server.Close()

	service := NewCaptionService(CaptionServiceConfig{BaseURL: server.URL})

	result, err := service.Next(context.Background(), 4)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if request.CurrentIndex != 4 {
		t.Errorf("Expected currentIndex 4, got %d", request.CurrentIndex)
	}

	if result.Index != 0 || result.Caption != "A cat sitting on a couch." {
		t.Errorf("Expected wrap to index 0, got %+v", result)
	}
}
