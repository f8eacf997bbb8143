package rest

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/chromatone/backend/internal/adapters/wavfile"
	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

type paletteResponse struct {
	Policy domain.BlendPolicy      `json:"blend_policy"`
	Colors []domain.ReferenceColor `json:"colores"`
}

// GetAudio handles GET /audio/{name}
func (h *Handler) GetAudio(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	rc, rec, err := h.svc.OpenAudio(r.Context(), name)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", wavfile.ContentType)
	w.Header().Set("Cache-Control", "private, max-age=60")

	// Local files support range requests; object-store bodies are streamed.
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, rec.CreatedAt, rs)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("audio stream interrupted", zap.String("name", name), zap.Error(err))
	}
}

// GetSynthesis handles GET /syntheses/{id}
func (h *Handler) GetSynthesis(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetSynthesis(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSynthesisResponse(rec))
}

// GetPalette handles GET /palette
func (h *Handler) GetPalette(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, paletteResponse{Policy: h.svc.BlendPolicy(), Colors: h.svc.ReferenceColors()})
}
