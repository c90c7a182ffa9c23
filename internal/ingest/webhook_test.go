package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/beekeep/internal/model"
	"github.com/sells-group/beekeep/internal/store"
)

func TestWebhookCandidates_Formats(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantHives  []string
		nonObjects int
	}{
		{
			name:      "array",
			payload:   `{"message":{"analysis":{"structuredData":[{"bikupa":"1"},{"bikupa":"2"}]}}}`,
			wantHives: []string{"1", "2"},
		},
		{
			name:       "inspections list",
			payload:    `{"message":{"analysis":{"structuredData":{"inspections":[{"bikupa":"Main Hive"}, 7]}}}}`,
			wantHives:  []string{"Main Hive"},
			nonObjects: 1,
		},
		{
			name:      "single object",
			payload:   `{"message":{"analysis":{"structuredData":{"bikupa":"North Hive","binasHälsa":3}}}}`,
			wantHives: []string{"North Hive"},
		},
		{
			name:      "single object keyed by queen",
			payload:   `{"message":{"analysis":{"structuredData":{"finnsDrottning":"ja"}}}}`,
			wantHives: []string{""},
		},
		{
			name:    "no inspection data",
			payload: `{"message":{"analysis":{"structuredData":{"summary":"inget"}}}}`,
		},
		{
			name:    "null structured data",
			payload: `{"message":{"analysis":{"structuredData":null}}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, err := WebhookCandidates([]byte(tt.payload))
			require.NoError(t, err)
			require.Len(t, call.Candidates, len(tt.wantHives))
			for i, want := range tt.wantHives {
				got, _ := call.Candidates[i][model.KeyHive].(string)
				assert.Equal(t, want, got)
			}
			assert.Equal(t, tt.nonObjects, call.NonObjects)
		})
	}
}

func TestWebhookCandidates_BadPayload(t *testing.T) {
	for _, payload := range []string{
		`not json`,
		`{}`,
		`{"message":{}}`,
		`{"message":{"timestamp":1}}`,
	} {
		_, err := WebhookCandidates([]byte(payload))
		assert.True(t, errors.Is(err, ErrBadPayload), payload)
	}
}

func TestWebhookCandidates_CallFields(t *testing.T) {
	call, err := WebhookCandidates([]byte(`{"message":{
		"timestamp": 1747215000000,
		"recordingUrl": "https://rec.example/abc.wav",
		"transcript": "Bikupa ett ser bra ut.",
		"analysis": {"structuredData": []}
	}}`))
	require.NoError(t, err)
	assert.Equal(t, "https://rec.example/abc.wav", call.RecordingURL)
	assert.Equal(t, "Bikupa ett ser bra ut.", call.Transcript)
	assert.Equal(t, time.UnixMilli(1747215000000).UTC(), call.Timestamp)
	assert.Empty(t, call.Candidates)
}

func TestCallTime(t *testing.T) {
	assert.True(t, callTime(nil).IsZero())
	assert.True(t, callTime([]byte(`"igår"`)).IsZero())
	assert.True(t, callTime([]byte(`0`)).IsZero())
	assert.Equal(t,
		time.Date(2026, 5, 14, 7, 30, 0, 0, time.UTC),
		callTime([]byte(`"2026-05-14T09:30:00+02:00"`)),
	)
}

func TestProcessWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.pipeline.ProcessWebhook(ctx, []byte(`{"message":{
		"timestamp": "2026-05-14T09:00:00Z",
		"recordingUrl": "https://rec.example/1.wav",
		"analysis": {"structuredData": {"inspections": [
			{"bikupa": "Main Hive", "nylagdaÄgg": "ja"},
			{"bikupa": "Västra"}
		]}}
	}}`))
	require.NoError(t, err)

	assert.Equal(t, model.SessionWebhook, out.Session.Source)
	assert.Equal(t, "https://rec.example/1.wav", out.Session.RecordingURL)
	assert.Equal(t, time.Date(2026, 5, 14, 9, 0, 0, 0, time.UTC), out.Session.CreatedAt)
	require.Len(t, out.Created, 1)
	require.NotNil(t, out.Created[0].FreshEggs)
	assert.Equal(t, model.Yes, *out.Created[0].FreshEggs)
	require.Len(t, out.Unresolved, 1)
	assert.Equal(t, "Västra", out.Unresolved[0].Hive)
}

func TestProcessWebhook_BadPayloadCreatesNoSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.ProcessWebhook(ctx, []byte(`{"message":{}}`))
	require.Error(t, err)

	sessions, err := f.store.ListSessions(ctx, store.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
