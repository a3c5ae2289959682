package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// tokenPattern matches runs of two or more letters, digits or underscores.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Feature is one non-zero entry of a sparse feature vector.
type Feature struct {
	Index int
	Value float64
}

// Transformer turns text into TF-IDF features over a fixed vocabulary. It is
// decoded from the transformer artifact and never modified afterwards.
type Transformer struct {
	Lowercase   bool           `json:"lowercase"`
	NgramRange  [2]int         `json:"ngram_range"`
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	SublinearTF bool           `json:"sublinear_tf"`
	Norm        string         `json:"norm"`
}

// DecodeTransformer parses a transformer artifact.
func DecodeTransformer(data []byte) (*Transformer, error) {
	var t Transformer
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("classifier: decode transformer: %w", err)
	}
	if len(t.Vocabulary) == 0 {
		return nil, fmt.Errorf("classifier: transformer has an empty vocabulary")
	}
	if t.NgramRange[0] <= 0 {
		t.NgramRange[0] = 1
	}
	if t.NgramRange[1] < t.NgramRange[0] {
		t.NgramRange[1] = t.NgramRange[0]
	}
	for term, idx := range t.Vocabulary {
		if idx < 0 || (len(t.IDF) > 0 && idx >= len(t.IDF)) {
			return nil, fmt.Errorf("classifier: term %q has out-of-range index %d", term, idx)
		}
	}
	return &t, nil
}

// Dim returns the feature space size.
func (t *Transformer) Dim() int {
	if len(t.IDF) > 0 {
		return len(t.IDF)
	}
	hi := -1
	for _, idx := range t.Vocabulary {
		if idx > hi {
			hi = idx
		}
	}
	return hi + 1
}

// Transform returns the sparse feature vector for text. Terms outside the
// vocabulary are dropped.
func (t *Transformer) Transform(text string) []Feature {
	if t.Lowercase {
		text = strings.ToLower(text)
	}
	tokens := tokenPattern.FindAllString(text, -1)

	counts := make(map[int]float64)
	for n := t.NgramRange[0]; n <= t.NgramRange[1]; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			gram := strings.Join(tokens[i:i+n], " ")
			if idx, ok := t.Vocabulary[gram]; ok {
				counts[idx]++
			}
		}
	}

	features := make([]Feature, 0, len(counts))
	var norm float64
	for idx, tf := range counts {
		if t.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		if len(t.IDF) > 0 {
			tf *= t.IDF[idx]
		}
		features = append(features, Feature{Index: idx, Value: tf})
		norm += tf * tf
	}

	if t.Norm == "l2" && norm > 0 {
		norm = math.Sqrt(norm)
		for i := range features {
			features[i].Value /= norm
		}
	}
	return features
}
