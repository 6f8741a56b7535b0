package inference

import (
	"fmt"
	"math"

	"github.com/tidwall/gjson"

	"github.com/mediassist/backend/internal/apperrors"
)

// Scale tells ParseOutput how to read score values.
type Scale string

const (
	// ScaleAuto treats scores as probabilities when they all lie in [0,1]
	// and sum to 1, otherwise as percentages. Percentages that happen to sum
	// to 1, such as a lone {"Flu":1}, are read as probabilities and become
	// 100; deployments whose classifier emits percentages should pin
	// ScalePercent.
	ScaleAuto        Scale = "auto"
	ScalePercent     Scale = "percent"
	ScaleProbability Scale = "probability"
)

const probabilitySumTolerance = 0.01

// scoreFields lists where the label->score object may live: the
// classifier emits "probabilities", saved reports carry "prediction".
var scoreFields = []string{"probabilities", "prediction", "scores"}

func ParseScale(s string) (Scale, error) {
	switch Scale(s) {
	case ScaleAuto, ScalePercent, ScaleProbability:
		return Scale(s), nil
	case "":
		return ScaleAuto, nil
	}
	return "", fmt.Errorf("unknown score scale %q", s)
}

// ParseOutput decodes classifier output, keeping the score object's key order
// and rescaling values to percentages according to scale.
func ParseOutput(data []byte, scale Scale) (*Result, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("output is not valid JSON: %w", apperrors.ErrMalformedOutput)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("output is not a JSON object: %w", apperrors.ErrMalformedOutput)
	}
	return parseResult(root, scale)
}

// ParseValue is ParseOutput for an already located JSON value.
func ParseValue(value gjson.Result, scale Scale) (*Result, error) {
	if !value.IsObject() {
		return nil, fmt.Errorf("model output is not a JSON object: %w", apperrors.ErrMalformedOutput)
	}
	return parseResult(value, scale)
}

func parseResult(root gjson.Result, scale Scale) (*Result, error) {
	if e := root.Get("error"); e.Exists() && e.Type != gjson.Null {
		return nil, fmt.Errorf("classifier reported %q: %w", e.String(), apperrors.ErrMalformedOutput)
	}

	var raw gjson.Result
	for _, field := range scoreFields {
		if v := root.Get(field); v.Exists() {
			raw = v
			break
		}
	}
	if !raw.Exists() {
		return nil, fmt.Errorf("output has no score mapping: %w", apperrors.ErrMalformedOutput)
	}

	scores, err := parseScores(raw)
	if err != nil {
		return nil, err
	}

	result := &Result{Scores: scores}

	if p := root.Get("predicted"); p.Exists() && p.Type != gjson.Null {
		if p.Type != gjson.String {
			return nil, fmt.Errorf("predicted label is not a string: %w", apperrors.ErrMalformedOutput)
		}
		result.Predicted = p.String()
	}

	if c := root.Get("confidence"); c.Type == gjson.Number {
		v := c.Float()
		result.Confidence = &v
	}

	normalize(result, scale)
	return result, nil
}

func parseScores(raw gjson.Result) (Scores, error) {
	if !raw.IsObject() {
		return nil, fmt.Errorf("score mapping is not an object: %w", apperrors.ErrMalformedOutput)
	}

	var (
		scores Scores
		err    error
	)
	seen := make(map[string]struct{})
	raw.ForEach(func(key, value gjson.Result) bool {
		label := key.String()
		if label == "" {
			err = fmt.Errorf("empty disease label: %w", apperrors.ErrMalformedOutput)
			return false
		}
		if _, dup := seen[label]; dup {
			err = fmt.Errorf("disease %q scored twice: %w", label, apperrors.ErrMalformedOutput)
			return false
		}
		seen[label] = struct{}{}

		if value.Type != gjson.Number {
			err = fmt.Errorf("score for %q is not a number: %w", label, apperrors.ErrMalformedOutput)
			return false
		}
		v := value.Float()
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			err = fmt.Errorf("score for %q is out of range: %w", label, apperrors.ErrMalformedOutput)
			return false
		}
		scores = append(scores, Score{Label: label, Value: v})
		return true
	})
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("score mapping is empty: %w", apperrors.ErrMalformedOutput)
	}
	return scores, nil
}

func normalize(r *Result, scale Scale) {
	switch scale {
	case ScalePercent:
		return
	case ScaleProbability:
	default:
		if !looksLikeProbabilities(r.Scores) {
			return
		}
	}

	for i := range r.Scores {
		r.Scores[i].Value *= 100
	}
	if r.Confidence != nil && *r.Confidence <= 1 {
		scaled := *r.Confidence * 100
		r.Confidence = &scaled
	}
}

func looksLikeProbabilities(scores Scores) bool {
	sum := 0.0
	for _, s := range scores {
		if s.Value > 1 {
			return false
		}
		sum += s.Value
	}
	return math.Abs(sum-1) <= probabilitySumTolerance
}
