package captions

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type captionResponse struct {
	Caption string `json:"caption"`
	Index   int    `json:"index"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJson(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(value); err != nil {
		slog.Error("error writing json response", "error", err)
	}
}
