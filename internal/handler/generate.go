package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/travel-blog/internal/generator"
)

// Generator drafts post content from a topic.
type Generator interface {
	Generate(ctx context.Context, topic string) (*generator.Result, error)
}

// GenerateHandler exposes AI draft generation to the editor.
type GenerateHandler struct {
	gen    Generator
	logger *slog.Logger
}

// NewGenerateHandler creates a GenerateHandler.
func NewGenerateHandler(gen Generator, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{gen: gen, logger: logger}
}

type generateRequest struct {
	Topic string `json:"topic"`
}

// HandleGenerate returns a draft for the requested topic.
//
// HTTP: POST /api/generate (RequireAuth)
// REQUEST BODY: {"topic": "Street food in Bangkok"}
//
// Upstream failures come back as 503 so the editor can show a retry hint;
// a draft that cannot be kept under the word cap is a 400.
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.gen.Generate(r.Context(), req.Topic)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
