package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/api/models"
	"github.com/checkthebay/checkthebay/internal/api/response"
)

// DefaultReefsPath is where the inshore reef list is read from.
const DefaultReefsPath = "data/reefs-inshore.json"

// ReefsHandler serves the curated inshore reef list. The file is read on
// every request so edits take effect without a restart.
type ReefsHandler struct {
	path   string
	logger zerolog.Logger
}

// NewReefsHandler creates a new ReefsHandler.
func NewReefsHandler(path string, logger zerolog.Logger) *ReefsHandler {
	if path == "" {
		path = DefaultReefsPath
	}
	return &ReefsHandler{path: path, logger: logger}
}

// ListInshore handles GET /v1/reefs/inshore.
func (h *ReefsHandler) ListInshore(w http.ResponseWriter, r *http.Request) {
	reefs, err := h.read()
	if err != nil {
		h.logger.Error().Err(err).Str("path", h.path).Msg("failed to read reefs")
		response.InternalError(w, r, "reefs unavailable")
		return
	}
	response.JSON(w, r, http.StatusOK, models.ReefsResponse{Reefs: reefs})
}

func (h *ReefsHandler) read() ([]json.RawMessage, error) {
	raw, err := os.ReadFile(h.path)
	if err != nil {
		return nil, err
	}
	var reefs []json.RawMessage
	if err := json.Unmarshal(raw, &reefs); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", h.path, err)
	}
	if reefs == nil {
		reefs = []json.RawMessage{}
	}
	return reefs, nil
}
