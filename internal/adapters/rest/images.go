package rest

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ewilliams-labs/chromatone/backend/internal/core/domain"
)

const (
	imageField        = "image"
	msgNoImage        = "No image provided"
	msgUploadTooLarge = "image upload too large"
	multipartMemory   = 1 << 20
)

// colorResponse describes one detected color. The Spanish keys are part of the
// public API consumed by existing clients.
type colorResponse struct {
	Color       domain.RGB `json:"color_detectado"`
	Hex         string     `json:"hex"`
	Label       string     `json:"equivalente"`
	Frequencies []float64  `json:"frecuencias"`
}

type synthesisResponse struct {
	ID              string                      `json:"id"`
	Colors          []domain.RGB                `json:"colores"`
	Labels          []string                    `json:"equivalentes"`
	Frequencies     []domain.FrequencySelection `json:"frecuencias"`
	AudioURL        string                      `json:"audio_url"`
	SampleRate      int                         `json:"sample_rate"`
	DurationSeconds float64                     `json:"duration_seconds"`
	CreatedAt       time.Time                   `json:"created_at"`
	ExpiresAt       *time.Time                  `json:"expires_at,omitempty"`
}

func hexOf(c domain.RGB) string {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}

func newSynthesisResponse(s domain.Synthesis) synthesisResponse {
	resp := synthesisResponse{
		ID:              s.ID,
		Colors:          s.Colors,
		Labels:          s.Labels,
		Frequencies:     s.Frequencies,
		AudioURL:        "/audio/" + s.AudioKey,
		SampleRate:      s.SampleRate,
		DurationSeconds: s.Duration().Seconds(),
		CreatedAt:       s.CreatedAt,
	}
	if !s.ExpiresAt.IsZero() {
		exp := s.ExpiresAt
		resp.ExpiresAt = &exp
	}
	return resp
}

// openImage returns the uploaded image part. ok is false when a response has
// already been written.
func (h *Handler) openImage(w http.ResponseWriter, r *http.Request) (multipart.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	file, _, err := r.FormFile(imageField)
	if err != nil {
		if isTooLarge(err) {
			writeErrorWithCode(w, http.StatusRequestEntityTooLarge, msgUploadTooLarge, errCodePayloadTooLarge)
			return nil, false
		}
		writeError(w, http.StatusBadRequest, msgNoImage)
		return nil, false
	}
	return file, true
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	// mime/multipart does not always wrap the underlying read error.
	return strings.Contains(err.Error(), "request body too large")
}

func cleanupMultipart(r *http.Request, file io.Closer) {
	file.Close()
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

// Analyze handles POST /analyze
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	file, ok := h.openImage(w, r)
	if !ok {
		return
	}
	defer cleanupMultipart(r, file)

	matches, err := h.svc.Analyze(r.Context(), file)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]colorResponse, len(matches))
	for i, m := range matches {
		resp[i] = colorResponse{
			Color:       m.Color,
			Hex:         hexOf(m.Color),
			Label:       m.Label,
			Frequencies: m.Selection,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Synthesize handles POST /synthesize
func (h *Handler) Synthesize(w http.ResponseWriter, r *http.Request) {
	file, ok := h.openImage(w, r)
	if !ok {
		return
	}
	defer cleanupMultipart(r, file)

	rec, err := h.svc.Synthesize(r.Context(), file)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", "/syntheses/"+rec.ID)
	writeJSON(w, http.StatusCreated, newSynthesisResponse(rec))
}
