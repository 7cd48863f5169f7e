// Package api exposes the scoring pipeline over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/davidahmann/txnscore/internal/audit"
	"github.com/davidahmann/txnscore/internal/ingest"
	"github.com/davidahmann/txnscore/internal/pipeline"
	"github.com/davidahmann/txnscore/internal/schema"
	"github.com/davidahmann/txnscore/internal/summarize"
)

const maxBatchSize = 500

type Handler struct {
	Runner     *pipeline.Runner
	Store      audit.Store
	Summarizer summarize.Summarizer
	SummaryTTL time.Duration
	Log        zerolog.Logger
	Clock      func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// RunRequest carries one scoring request. Exactly one of Records, CSV or
// Generate should be set; Records wins when several are present.
type RunRequest struct {
	BatchID   string                     `json:"batch_id"`
	Records   []schema.TransactionRecord `json:"records"`
	CSV       string                     `json:"csv"`
	Generate  *GenerateRequest           `json:"generate"`
	Summarize bool                       `json:"summarize"`
}

type GenerateRequest struct {
	Count       int     `json:"count"`
	AnomalyRate float64 `json:"anomaly_rate"`
	Seed        int64   `json:"seed"`
}

type RunResponse struct {
	Result    any              `json:"result"`
	Import    *ingest.Metadata `json:"import,omitempty"`
	Summaries []string         `json:"summaries,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	records, meta, err := h.resolveRecords(req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if len(records) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no records provided"})
		return
	}
	if len(records) > maxBatchSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "batch too large"})
		return
	}

	result := h.Runner.Run(records, req.BatchID)

	if h.Store != nil {
		batch, decisions, err := audit.BuildRecords(result)
		if err != nil {
			h.Log.Error().Err(err).Str("batch_id", result.BatchID).Msg("build audit records")
		} else if err := h.Store.PutRun(batch, decisions); err != nil {
			h.Log.Error().Err(err).Str("batch_id", result.BatchID).Msg("persist batch")
		}
	}

	resp := RunResponse{Result: result, Import: meta}
	if req.Summarize {
		for _, d := range result.Decisions {
			resp.Summaries = append(resp.Summaries, summarize.Run(r.Context(), h.Summarizer, d, h.SummaryTTL))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) resolveRecords(req RunRequest) ([]schema.TransactionRecord, *ingest.Metadata, error) {
	switch {
	case len(req.Records) > 0:
		return req.Records, nil, nil
	case req.CSV != "":
		records, meta, err := ingest.AdaptCSV(req.CSV, h.now())
		if err != nil {
			return nil, nil, err
		}
		return records, &meta, nil
	case req.Generate != nil:
		count := req.Generate.Count
		if count <= 0 {
			count = 10
		}
		if count > maxBatchSize {
			count = maxBatchSize
		}
		seed := req.Generate.Seed
		if seed == 0 {
			seed = h.now().UnixNano()
		}
		gen := ingest.NewGenerator(seed, req.Generate.AnomalyRate, h.Clock)
		return gen.Batch(count), nil, nil
	}
	return nil, nil, nil
}

func (h *Handler) Batches(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "audit store not configured"})
		return
	}

	batchID := strings.TrimPrefix(r.URL.Path, "/v1/batches/")
	if batchID == "" {
		batches, err := h.Store.ListBatches(50)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"batches": batchViews(batches)})
		return
	}

	batch, ok := h.Store.GetBatch(batchID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "batch not found"})
		return
	}
	decisions, err := h.Store.ListDecisions(batchID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	decViews := make([]map[string]any, 0, len(decisions))
	for _, d := range decisions {
		decViews = append(decViews, map[string]any{
			"record_id":             d.RecordID,
			"action":                d.Action,
			"dqs_final":             d.DQSFinal,
			"confidence_band":       d.ConfidenceBand,
			"primary_reason":        d.PrimaryReason,
			"requires_human_review": d.RequiresHumanReview,
			"body_digest":           d.BodyDigest,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"batch":     batchView(batch),
		"decisions": decViews,
	})
}

func batchView(b audit.BatchRecord) map[string]any {
	return map[string]any{
		"batch_id":        b.BatchID,
		"execution_id":    b.ExecutionID,
		"created_at":      b.CreatedAt,
		"total_records":   b.TotalRecords,
		"safe_count":      b.SafeCount,
		"review_count":    b.ReviewCount,
		"escalate_count":  b.EscalateCount,
		"no_action_count": b.NoActionCount,
		"quality_rate":    b.QualityRate,
		"average_dqs":     b.AverageDQS,
		"success":         b.Success,
		"body_digest":     b.BodyDigest,
	}
}

func batchViews(batches []audit.BatchRecord) []map[string]any {
	out := make([]map[string]any, 0, len(batches))
	for _, b := range batches {
		out = append(out, batchView(b))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
