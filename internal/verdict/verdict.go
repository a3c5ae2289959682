// Package verdict defines the closed set of moderation verdicts, their
// external action codes and the priority weights used to merge them.
package verdict

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownVerdict is returned by every conversion that receives a value
// outside the five known verdicts.
var ErrUnknownVerdict = errors.New("verdict: unknown verdict")

// Verdict is a moderation decision. The underlying value is the external
// action code stored with comments and posted to the feedback endpoint; it is
// NOT the merge priority (see Priority).
type Verdict int

// Action codes.
const (
	Accept      Verdict = 0
	Hide        Verdict = 1
	Remove      Verdict = 2
	Ban         Verdict = 3
	HumanReview Verdict = 4
)

var names = map[Verdict]string{
	Accept:      "ACCEPT",
	Hide:        "HIDE",
	Remove:      "REMOVE",
	Ban:         "BAN",
	HumanReview: "HUMAN_REVIEW",
}

// priorities ranks verdicts for merging:
// ACCEPT < HUMAN_REVIEW < HIDE < REMOVE < BAN.
var priorities = map[Verdict]int{
	Accept:      1,
	HumanReview: 2,
	Hide:        3,
	Remove:      4,
	Ban:         5,
}

// All lists the verdicts in ascending priority order.
var All = []Verdict{Accept, HumanReview, Hide, Remove, Ban}

// Valid reports whether v is one of the five known verdicts.
func (v Verdict) Valid() bool {
	_, ok := names[v]
	return ok
}

// Priority returns the merge weight of v, or 0 for an unknown verdict.
func (v Verdict) Priority() int {
	return priorities[v]
}

// Code returns the external action code.
func (v Verdict) Code() int {
	return int(v)
}

// Label reduces v to the binary training label: ACCEPT is 0, anything else 1.
func (v Verdict) Label() int {
	if v == Accept {
		return 0
	}
	return 1
}

func (v Verdict) String() string {
	if n, ok := names[v]; ok {
		return n
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Merge returns the verdict with the higher priority weight. On a tie the
// current verdict is kept, so the earliest contributor wins.
func Merge(current, candidate Verdict) Verdict {
	if candidate.Priority() > current.Priority() {
		return candidate
	}
	return current
}

// MergeAll folds vs into ACCEPT with Merge.
func MergeAll(vs ...Verdict) Verdict {
	best := Accept
	for _, v := range vs {
		best = Merge(best, v)
	}
	return best
}

// Parse converts a case-insensitive name such as "human_review" to a Verdict.
func Parse(s string) (Verdict, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for v, n := range names {
		if n == want {
			return v, nil
		}
	}
	return Accept, fmt.Errorf("%w: %q", ErrUnknownVerdict, s)
}

// FromCode converts an external action code to a Verdict.
func FromCode(code int) (Verdict, error) {
	v := Verdict(code)
	if !v.Valid() {
		return Accept, fmt.Errorf("%w: code %d", ErrUnknownVerdict, code)
	}
	return v, nil
}

// FromBool maps an acceptability flag: true is ACCEPT, false is HIDE.
func FromBool(acceptable bool) Verdict {
	if acceptable {
		return Accept
	}
	return Hide
}

// FromClass maps a binary classifier or reviewer decision: 0 is ACCEPT,
// 1 is HIDE.
func FromClass(class int) (Verdict, error) {
	switch class {
	case 0:
		return Accept, nil
	case 1:
		return Hide, nil
	}
	return Accept, fmt.Errorf("%w: class %d", ErrUnknownVerdict, class)
}

// MarshalText encodes v by name.
func (v Verdict) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("%w: code %d", ErrUnknownVerdict, int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText decodes a verdict name.
func (v *Verdict) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
