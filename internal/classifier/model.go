package classifier

import (
	"encoding/json"
	"fmt"
	"math"
)

// LinearModel is a logistic-regression classifier. A single coefficient row
// is a binary model; more rows are a multinomial (softmax) model.
type LinearModel struct {
	Classes   []int       `json:"classes"`
	Coef      [][]float64 `json:"coef"`
	Intercept []float64   `json:"intercept"`
}

// DecodeModel parses a model artifact.
func DecodeModel(data []byte) (*LinearModel, error) {
	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("classifier: decode model: %w", err)
	}
	if len(m.Coef) == 0 {
		return nil, fmt.Errorf("classifier: model has no coefficients")
	}
	if len(m.Intercept) != len(m.Coef) {
		return nil, fmt.Errorf("classifier: %d intercepts for %d coefficient rows", len(m.Intercept), len(m.Coef))
	}
	wantClasses := len(m.Coef)
	if wantClasses == 1 {
		wantClasses = 2
	}
	if len(m.Classes) != wantClasses {
		return nil, fmt.Errorf("classifier: %d classes for %d coefficient rows", len(m.Classes), len(m.Coef))
	}
	width := len(m.Coef[0])
	for i, row := range m.Coef {
		if len(row) != width {
			return nil, fmt.Errorf("classifier: coefficient row %d has width %d, want %d", i, len(row), width)
		}
	}
	return &m, nil
}

// Width returns the number of features the model expects.
func (m *LinearModel) Width() int {
	return len(m.Coef[0])
}

// PredictProba returns one probability per entry of Classes.
func (m *LinearModel) PredictProba(x []Feature) []float64 {
	scores := make([]float64, len(m.Coef))
	for i, row := range m.Coef {
		s := m.Intercept[i]
		for _, f := range x {
			if f.Index < len(row) {
				s += row[f.Index] * f.Value
			}
		}
		scores[i] = s
	}

	if len(scores) == 1 {
		p := sigmoid(scores[0])
		return []float64{1 - p, p}
	}
	return softmax(scores)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func softmax(scores []float64) []float64 {
	hi := scores[0]
	for _, s := range scores[1:] {
		if s > hi {
			hi = s
		}
	}
	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
