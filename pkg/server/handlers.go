package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"umbra-hq/umbra/pkg/audit"
	"umbra-hq/umbra/pkg/pipeline"
	"umbra-hq/umbra/pkg/plugin"
	"umbra-hq/umbra/pkg/span"
	"umbra-hq/umbra/pkg/telemetry/logging"
)

// RedactRequest is the POST /v1/redact request body. Spans are the
// upstream detectors' candidates; text and window fields may be omitted
// and are filled in from the document.
type RedactRequest struct {
	ID       string            `json:"id,omitempty"`
	Text     string            `json:"text"`
	Spans    []span.Span       `json:"spans,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RedactResponse is the POST /v1/redact response body. It never echoes
// the original text.
type RedactResponse struct {
	DocumentID     string      `json:"documentId"`
	RedactedText   string      `json:"redactedText"`
	Spans          []span.Span `json:"spans"`
	ShortCircuited bool        `json:"shortCircuited"`
	DurationMS     int64       `json:"durationMs"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) redactHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req RedactRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.Text == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}

		doc := &plugin.Document{
			ID:       req.ID,
			Text:     req.Text,
			Metadata: req.Metadata,
		}
		if len(req.Spans) > 0 {
			pipeline.AttachSpans(doc, req.Spans)
		}

		ctx := r.Context()
		if doc.ID != "" {
			ctx = logging.WithDocumentID(ctx, doc.ID)
		}

		result, err := s.deps.Pipeline.Process(ctx, doc)
		if err != nil {
			s.logger.ErrorContext(ctx, "redaction failed", "error", err)
			writeError(w, http.StatusUnprocessableEntity, "document could not be processed")
			return
		}

		writeJSON(w, http.StatusOK, RedactResponse{
			DocumentID:     result.DocumentID,
			RedactedText:   result.RedactedText,
			Spans:          result.Spans,
			ShortCircuited: result.ShortCircuited,
			DurationMS:     result.Duration.Milliseconds(),
		})
	}
}

// auditHandler serves GET /v1/audit with document_id, outcome, since,
// until (RFC 3339), limit, and offset query parameters.
func (s *Server) auditHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if s.deps.Audit == nil {
			writeError(w, http.StatusNotFound, "audit store not configured")
			return
		}

		query, err := parseAuditQuery(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		records, err := s.deps.Audit.Query(r.Context(), query)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "audit query failed", "error", err)
			writeError(w, http.StatusInternalServerError, "audit query failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"records": records,
			"count":   len(records),
		})
	}
}

func parseAuditQuery(r *http.Request) (*audit.Query, error) {
	q := r.URL.Query()
	query := &audit.Query{
		DocumentID: q.Get("document_id"),
		Outcome:    q.Get("outcome"),
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, errors.New("limit must be a non-negative integer")
		}
		query.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, errors.New("offset must be a non-negative integer")
		}
		query.Offset = n
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errors.New("since must be RFC 3339")
		}
		query.Since = &ts
	}
	if v := q.Get("until"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, errors.New("until must be RFC 3339")
		}
		query.Until = &ts
	}

	return query, nil
}
