// Package inference calls the external disease classifier and turns its
// output into an ordered list of (label, score) pairs.
package inference

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Predictor is the classifier capability: one blocking request, no retries.
type Predictor interface {
	Predict(ctx context.Context, symptoms []string) (*Result, error)
}

type Score struct {
	Label string
	Value float64
}

// Scores keeps the classifier's key order. It encodes as a JSON object.
type Scores []Score

type Result struct {
	Predicted  string   `json:"predicted"`
	Confidence *float64 `json:"confidence,omitempty"`
	Scores     Scores   `json:"probabilities"`
}

func (s Scores) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, score := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(score.Label)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(score.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Scores) UnmarshalJSON(data []byte) error {
	parsed, err := parseScores(gjson.ParseBytes(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
