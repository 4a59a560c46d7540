package app

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/farevoice/farevoice/internal/health"
	"github.com/farevoice/farevoice/internal/transcript"
)

// turnJSON is the wire shape of one transcript turn.
type turnJSON struct {
	ID          string    `json:"id"`
	Role        string    `json:"role"`
	Content     string    `json:"content"`
	ToolCallID  string    `json:"tool_call_id,omitempty"`
	Destination string    `json:"destination,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// statusJSON is the wire shape of the pipeline status endpoint.
type statusJSON struct {
	Status     string     `json:"status"`
	HasImage   bool       `json:"has_image"`
	Transcript []turnJSON `json:"transcript"`
}

// routes assembles the HTTP surface: pipeline status, the latest destination
// image, Prometheus metrics, and health probes.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()

	health.New(a.healthCheckers()...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /v1/status", a.handleStatus)
	mux.HandleFunc("GET /v1/image", a.handleImage)

	return mux
}

// handleStatus returns the pipeline status string, the committed transcript
// snapshot, and whether a destination image is available.
func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	turns, err := a.orch.Snapshot(r.Context())
	if err != nil {
		http.Error(w, `{"error":"transcript unavailable"}`, http.StatusInternalServerError)
		return
	}

	res := statusJSON{
		Status:     a.orch.Status(),
		HasImage:   a.orch.LatestImage() != nil,
		Transcript: make([]turnJSON, 0, len(turns)),
	}
	for _, t := range turns {
		res.Transcript = append(res.Transcript, toTurnJSON(t))
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		a.log.Warn("status encode failed", "error", err)
	}
}

// handleImage serves the most recently generated destination image.
func (a *App) handleImage(w http.ResponseWriter, _ *http.Request) {
	asset := a.orch.LatestImage()
	if asset == nil {
		http.Error(w, "no image generated yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(asset); err != nil {
		a.log.Warn("image write failed", "error", err)
	}
}

func toTurnJSON(t transcript.Turn) turnJSON {
	return turnJSON{
		ID:          t.ID,
		Role:        string(t.Role),
		Content:     t.Content,
		ToolCallID:  t.ToolCallID,
		Destination: t.Destination,
		CreatedAt:   t.CreatedAt,
	}
}
