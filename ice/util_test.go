package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUfragAndPasswordAreDistinctAndCharsetSafe(t *testing.T) {
	ufrag, err := generateUfrag()
	require.NoError(t, err)
	pwd, err := generatePassword()
	require.NoError(t, err)

	assert.NotEmpty(t, ufrag)
	assert.NotEmpty(t, pwd)
	assert.NotEqual(t, ufrag, pwd)

	for _, r := range ufrag + pwd {
		assert.Contains(t, iceCharset, string(r))
	}
}

func TestGenerateTieBreakerIsRandomized(t *testing.T) {
	a, err := generateTieBreaker()
	require.NoError(t, err)
	b, err := generateTieBreaker()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestResolveHostRejectsNonLiteral(t *testing.T) {
	_, err := resolveHost("example.invalid")
	assert.Error(t, err)

	ip, err := resolveHost("192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", ip.String())
}
