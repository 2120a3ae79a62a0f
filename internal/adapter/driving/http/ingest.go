package http

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/pkg/apperror"
)

// MaxIngestBody bounds the size of one ingestion request
const MaxIngestBody = 4 << 20

// IngestHandler accepts alerts reported by external systems, either one
// message object or an array of them
type IngestHandler struct {
	service port.IngestService
	errors  *apperror.Handler
}

// NewIngestHandler creates a new ingestion handler
func NewIngestHandler(service port.IngestService, errHandler *apperror.Handler) *IngestHandler {
	return &IngestHandler{service: service, errors: errHandler}
}

// Routes registers ingestion routes
func (h *IngestHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/alerts", h.Ingest)
	return r
}

// IngestResult reports the outcome of one message in a batch
type IngestResult struct {
	MessageID string `json:"messageId"`
	AlertID   string `json:"alertId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BatchIngestResponse is returned for array payloads
type BatchIngestResponse struct {
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	Results  []IngestResult `json:"results"`
}

// Ingest decodes and ingests the request payload
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxIngestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.errors.Handle(w, r, apperror.PayloadTooLarge(tooLarge.Limit))
			return
		}
		h.errors.Handle(w, r, apperror.BadRequest("failed to read request body"))
		return
	}

	d := jx.DecodeBytes(body)
	switch d.Next() {
	case jx.Object:
		msg, err := DecodeIngestMessage(d)
		if err != nil {
			h.errors.Handle(w, r, apperror.BadRequest("invalid ingest message: "+err.Error()))
			return
		}
		result, err := h.service.Ingest(r.Context(), msg)
		if err != nil {
			h.errors.Handle(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, commandResponse(result))

	case jx.Array:
		var msgs []port.IngestMessage
		err := d.Arr(func(d *jx.Decoder) error {
			msg, err := DecodeIngestMessage(d)
			if err != nil {
				return err
			}
			msgs = append(msgs, msg)
			return nil
		})
		if err != nil {
			h.errors.Handle(w, r, apperror.BadRequest("invalid ingest batch: "+err.Error()))
			return
		}
		respondJSON(w, http.StatusOK, h.ingestBatch(r, msgs))

	default:
		h.errors.Handle(w, r, apperror.BadRequest("request body must be a message object or an array of messages"))
	}
}

func (h *IngestHandler) ingestBatch(r *http.Request, msgs []port.IngestMessage) BatchIngestResponse {
	resp := BatchIngestResponse{Results: make([]IngestResult, 0, len(msgs))}
	for _, msg := range msgs {
		res := IngestResult{MessageID: msg.MessageID}
		result, err := h.service.Ingest(r.Context(), msg)
		if err != nil {
			resp.Rejected++
			res.Error = apperror.ToAppError(err).Message
		} else {
			resp.Accepted++
			res.AlertID = result.Alert.ID.String()
		}
		resp.Results = append(resp.Results, res)
	}
	return resp
}

// DecodeIngestMessage reads one message object. Timestamps may be RFC 3339
// strings or epoch seconds. Unknown keys are ignored; field validation is
// left to the ingestion service.
func DecodeIngestMessage(d *jx.Decoder) (port.IngestMessage, error) {
	var msg port.IngestMessage
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "messageId":
			msg.MessageID, err = optionalString(d)
		case "sourceSystem":
			msg.SourceSystem, err = optionalString(d)
		case "severity":
			msg.Severity, err = optionalString(d)
		case "description":
			msg.Description, err = optionalString(d)
		case "timestamp":
			msg.Timestamp, err = decodeTimestamp(d)
		case "details":
			msg.Details, err = decodeDetails(d)
		default:
			return d.Skip()
		}
		return errors.Wrap(err, string(key))
	})
	return msg, err
}

func optionalString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeTimestamp(d *jx.Decoder) (time.Time, error) {
	switch d.Next() {
	case jx.Null:
		return time.Time{}, d.Null()
	case jx.Number:
		secs, err := d.Float64()
		if err != nil {
			return time.Time{}, err
		}
		whole, frac := math.Modf(secs)
		return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
	default:
		s, err := d.Str()
		if err != nil {
			return time.Time{}, err
		}
		return time.Parse(time.RFC3339Nano, s)
	}
}

func decodeDetails(d *jx.Decoder) (map[string]any, error) {
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Object:
		raw, err := d.Raw()
		if err != nil {
			return nil, err
		}
		var details map[string]any
		if err := json.Unmarshal(raw, &details); err != nil {
			return nil, err
		}
		return details, nil
	default:
		return nil, errors.New("details must be an object")
	}
}
