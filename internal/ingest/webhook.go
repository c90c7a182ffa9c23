package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/schema"
)

// ErrBadPayload is returned for voice-agent payloads without a message or
// analysis section.
var ErrBadPayload = eris.New("bad webhook payload")

// VoiceCall is the part of an end-of-call report the pipeline uses.
type VoiceCall struct {
	RecordingURL string
	Transcript   string
	Timestamp    time.Time
	Candidates   []model.ExtractionCandidate
	NonObjects   int
}

type webhookPayload struct {
	Message *struct {
		Timestamp    json.RawMessage `json:"timestamp"`
		RecordingURL string          `json:"recordingUrl"`
		Transcript   string          `json:"transcript"`
		Analysis     *struct {
			StructuredData any `json:"structuredData"`
		} `json:"analysis"`
	} `json:"message"`
}

// WebhookCandidates decodes a voice-agent end-of-call report. The
// structured data may be an array of inspections, an object with an
// "inspections" array, or a single inspection object.
func WebhookCandidates(payload []byte) (*VoiceCall, error) {
	var p webhookPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, eris.Wrapf(ErrBadPayload, "ingest: decode webhook: %v", err)
	}
	if p.Message == nil || p.Message.Analysis == nil {
		return nil, eris.Wrap(ErrBadPayload, "ingest: missing message or analysis")
	}

	call := &VoiceCall{
		RecordingURL: p.Message.RecordingURL,
		Transcript:   p.Message.Transcript,
		Timestamp:    callTime(p.Message.Timestamp),
	}

	raw := inspectionData(p.Message.Analysis.StructuredData)
	if raw == nil {
		zap.L().Warn("ingest: no inspection data in structured data")
		return call, nil
	}
	cands, nonObjects, err := schema.Candidates(raw)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: structured data")
	}
	call.Candidates = cands
	call.NonObjects = nonObjects
	return call, nil
}

// inspectionData picks the inspection list out of the structured data, or
// returns nil when it holds none.
func inspectionData(data any) any {
	switch v := data.(type) {
	case []any:
		return v
	case map[string]any:
		if list, ok := v["inspections"].([]any); ok {
			return list
		}
		if truthy(v[model.KeyHive]) || truthy(v[model.KeyQueenPresent]) {
			return v
		}
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	default:
		return true
	}
}

// callTime accepts epoch milliseconds or an RFC 3339 string. Anything else
// yields the zero time, leaving the session timestamp to the store.
func callTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil && ms > 0 {
		return time.UnixMilli(int64(ms)).UTC()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ProcessWebhook ingests a voice-agent end-of-call report.
func (p *Pipeline) ProcessWebhook(ctx context.Context, payload []byte) (*Outcome, error) {
	call, err := WebhookCandidates(payload)
	if err != nil {
		return nil, err
	}
	return p.ProcessCandidates(ctx, IngestRequest{
		Source:       model.SessionWebhook,
		RecordingURL: call.RecordingURL,
		Transcript:   call.Transcript,
		ReceivedAt:   call.Timestamp,
	}, call.Candidates, call.NonObjects)
}
