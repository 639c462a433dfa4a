package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigned_StableUntilChanged(t *testing.T) {
	var s Signed

	first := s.Signature()
	require.False(t, first.IsNil())
	assert.Equal(t, first, s.Signature(), "signature must be stable between mutations")

	s.MarkAsChanged()
	assert.NotEqual(t, first, s.Signature())
}

func TestParse_RoundTrip(t *testing.T) {
	sig := New()
	parsed, err := Parse(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig, parsed)

	_, err = Parse("not-a-signature")
	assert.Error(t, err)
}
