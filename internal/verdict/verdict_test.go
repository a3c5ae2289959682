package verdict

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityOrder(t *testing.T) {
	for i := 1; i < len(All); i++ {
		assert.Less(t, All[i-1].Priority(), All[i].Priority(),
			"%s should rank below %s", All[i-1], All[i])
	}
	assert.Equal(t, 0, Verdict(9).Priority())
}

func TestCodesAreSeparateFromPriority(t *testing.T) {
	assert.Equal(t, 4, HumanReview.Code())
	assert.Equal(t, 2, HumanReview.Priority())
	assert.Equal(t, 3, Ban.Code())
	assert.Equal(t, 5, Ban.Priority())
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name      string
		current   Verdict
		candidate Verdict
		want      Verdict
	}{
		{"escalates", Accept, Hide, Hide},
		{"never lowers", Ban, Accept, Ban},
		{"review beats accept", Accept, HumanReview, HumanReview},
		{"hide beats review", HumanReview, Hide, Hide},
		{"tie keeps current", Remove, Remove, Remove},
		{"unknown candidate ignored", Accept, Verdict(42), Accept},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.current, tt.candidate))
		})
	}
}

func TestMergeAllIsMonotonic(t *testing.T) {
	for _, a := range All {
		for _, b := range All {
			got := MergeAll(a, b)
			assert.GreaterOrEqual(t, got.Priority(), a.Priority())
			assert.GreaterOrEqual(t, got.Priority(), b.Priority())
		}
	}
	assert.Equal(t, Accept, MergeAll())
}

func TestParse(t *testing.T) {
	v, err := Parse("human_review")
	require.NoError(t, err)
	assert.Equal(t, HumanReview, v)

	v, err = Parse(" Ban ")
	require.NoError(t, err)
	assert.Equal(t, Ban, v)

	_, err = Parse("UNKNOWN")
	assert.ErrorIs(t, err, ErrUnknownVerdict)
}

func TestFromCode(t *testing.T) {
	for code := 0; code <= 4; code++ {
		v, err := FromCode(code)
		require.NoError(t, err)
		assert.Equal(t, code, v.Code())
	}

	_, err := FromCode(-1)
	assert.ErrorIs(t, err, ErrUnknownVerdict)
	_, err = FromCode(5)
	assert.ErrorIs(t, err, ErrUnknownVerdict)
}

func TestFromBoolAndClass(t *testing.T) {
	assert.Equal(t, Accept, FromBool(true))
	assert.Equal(t, Hide, FromBool(false))

	v, err := FromClass(1)
	require.NoError(t, err)
	assert.Equal(t, Hide, v)

	_, err = FromClass(2)
	assert.ErrorIs(t, err, ErrUnknownVerdict)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, 0, Accept.Label())
	for _, v := range []Verdict{Hide, Remove, Ban, HumanReview} {
		assert.Equal(t, 1, v.Label(), v.String())
	}
}

func TestJSONText(t *testing.T) {
	b, err := json.Marshal(struct {
		V Verdict `json:"v"`
	}{Remove})
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":"REMOVE"}`, string(b))

	var out struct {
		V Verdict `json:"v"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"v":"hide"}`), &out))
	assert.Equal(t, Hide, out.V)

	assert.Error(t, json.Unmarshal([]byte(`{"v":"nope"}`), &out))
}
