package markerexpr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taut/internal/model"
)

func item(markers ...model.Marker) model.TestItem {
	return model.TestItem{ID: "t", Callable: "t", Markers: markers}
}

func presence(key string) model.Marker {
	return model.Marker{Key: key, Kind: model.MarkerPresence}
}

func scalar(key, value string) model.Marker {
	return model.Marker{Key: key, Kind: model.MarkerScalar, Scalar: value}
}

func set(key string, values ...string) model.Marker {
	return model.Marker{Key: key, Kind: model.MarkerSet, Set: values}
}

func TestPresenceAtom(t *testing.T) {
	expr, err := Parse("slow")
	require.NoError(t, err)

	assert.True(t, Matches(expr, item(presence("slow"))))
	assert.False(t, Matches(expr, item()))
}

func TestEqualityAtomScalar(t *testing.T) {
	expr, err := Parse("priority=1")
	require.NoError(t, err)

	assert.True(t, Matches(expr, item(scalar("priority", "1"))))
	assert.False(t, Matches(expr, item(scalar("priority", "2"))))
}

func TestEqualityAtomSetMembership(t *testing.T) {
	expr, err := Parse(`group=api`)
	require.NoError(t, err)

	assert.True(t, Matches(expr, item(set("group", "api", "db"))))
	assert.False(t, Matches(expr, item(set("group", "web"))))
}

func TestQuotedValue(t *testing.T) {
	expr, err := Parse(`group="needs spaces"`)
	require.NoError(t, err)
	assert.True(t, Matches(expr, item(scalar("group", "needs spaces"))))
}

func TestNotPrecedence(t *testing.T) {
	// not slow and fast == (not slow) and fast
	expr, err := Parse("not slow and fast")
	require.NoError(t, err)

	assert.True(t, Matches(expr, item(presence("fast"))))
	assert.False(t, Matches(expr, item(presence("slow"), presence("fast"))))
}

func TestAndPrecedenceOverOr(t *testing.T) {
	// slow and fast or quick == (slow and fast) or quick
	expr, err := Parse("slow and fast or quick")
	require.NoError(t, err)

	assert.True(t, Matches(expr, item(presence("quick"))))
	assert.True(t, Matches(expr, item(presence("slow"), presence("fast"))))
	assert.False(t, Matches(expr, item(presence("slow"))))
}

func TestParentheses(t *testing.T) {
	expr, err := Parse("not (slow or fast)")
	require.NoError(t, err)

	assert.True(t, Matches(expr, item()))
	assert.False(t, Matches(expr, item(presence("slow"))))
}

func TestSyntaxErrorUnterminatedString(t *testing.T) {
	_, err := Parse(`group="unterminated`)
	require.Error(t, err)
	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
}

func TestSyntaxErrorUnbalancedParen(t *testing.T) {
	_, err := Parse("(slow and fast")
	require.Error(t, err)
}

func TestSyntaxErrorTrailingTokens(t *testing.T) {
	_, err := Parse("slow )")
	require.Error(t, err)
}

func TestSyntaxErrorMissingValueAfterEquals(t *testing.T) {
	_, err := Parse("group=")
	require.Error(t, err)
}
