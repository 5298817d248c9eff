package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredictionNullFieldsRenderAsNull(t *testing.T) {
	p := Prediction{Ticker: "TSLA", Why: "Not enough recent history yet."}
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ticker":"TSLA","pred_up":null,"prob_up":null,"why":"Not enough recent history yet."}`, string(raw))
}

func TestPredictionRunShape(t *testing.T) {
	up := true
	prob := 0.62
	run := PredictionRun{
		AsOf: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Predictions: []Prediction{
			{Ticker: "NVDA", PredUp: &up, ProbUp: &prob, Why: "Driven mainly by high short-term momentum."},
		},
	}
	raw, err := json.Marshal(run)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "2026-01-02T03:04:05Z", decoded["asof"])
	preds, ok := decoded["predictions"].([]any)
	require.True(t, ok)
	require.Len(t, preds, 1)
	first := preds[0].(map[string]any)
	assert.Equal(t, true, first["pred_up"])
	assert.InDelta(t, 0.62, first["prob_up"], 1e-12)
}
