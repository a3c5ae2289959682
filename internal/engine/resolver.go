package engine

import (
	"github.com/whisper/moderator/internal/classifier"
	"github.com/whisper/moderator/internal/verdict"
)

// DefaultThreshold is the classifier certainty, in percent, needed for the
// classifier to contribute a verdict.
const DefaultThreshold = 80.0

// ClassifierVerdict returns the verdict a classification contributes and
// whether it contributes at all. Below threshold it contributes nothing.
func ClassifierVerdict(c classifier.Classification, threshold float64) (verdict.Verdict, bool) {
	if c.Confidence < threshold {
		return verdict.Accept, false
	}
	v, err := verdict.FromClass(c.Class)
	if err != nil {
		return verdict.Accept, false
	}
	return v, true
}

// Resolve folds filter verdicts, in order, and the classifier contribution
// into one verdict. A nil classification means the classifier was skipped.
func Resolve(filters []verdict.Verdict, c *classifier.Classification, threshold float64) verdict.Verdict {
	best := verdict.MergeAll(filters...)
	if c != nil {
		if v, ok := ClassifierVerdict(*c, threshold); ok {
			best = verdict.Merge(best, v)
		}
	}
	return best
}
