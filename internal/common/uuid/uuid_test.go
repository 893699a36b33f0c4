package uuid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsV7(t *testing.T) {
	u := New()
	assert.NotEqual(t, Nil, u)
	assert.EqualValues(t, 7, u.Version())
}

func TestParseRoundTrip(t *testing.T) {
	u := New()
	parsed, err := Parse(u.String())
	require.NoError(t, err)
	assert.Equal(t, u, parsed)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-uuid")
	assert.Error(t, err)
}
