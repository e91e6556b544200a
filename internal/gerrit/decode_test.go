package gerrit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripXSSI(t *testing.T) {
	cases := map[string]string{
		")]}'\n\"2.7\"":        `"2.7"`,
		")]}'   {\"a\":1}  \n": `{"a":1}`,
		"  \"3.9.1\"  ":        `"3.9.1"`,
		")]}'":                 "",
		"":                     "",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripXSSI(in), "input %q", in)
	}
}

func TestDecodeBareVersion(t *testing.T) {
	value, err := Decode(")]}'\n\"2.7\"")
	require.NoError(t, err)
	assert.Equal(t, "2.7", value)
}

func TestDecodeObject(t *testing.T) {
	value, err := Decode(")]}'\n{\"gerrit_version\":\"3.10.0\"}")
	require.NoError(t, err)

	version, ok := versionFrom(value)
	require.True(t, ok)
	assert.Equal(t, "3.10.0", version)
}

func TestDecodeEmpty(t *testing.T) {
	_, err := Decode(")]}' \n\t ")
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Empty)
}

func TestDecodeInvalidJSON(t *testing.T) {
	_, err := Decode(")]}'\n<html>not found</html>")
	require.Error(t, err)

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.False(t, perr.Empty)
	assert.NotNil(t, errors.Unwrap(err))
}

func TestVersionFrom(t *testing.T) {
	version, ok := versionFrom(map[string]any{"other": true})
	assert.True(t, ok)
	assert.Equal(t, "unknown", version)

	version, ok = versionFrom("")
	assert.True(t, ok)
	assert.Equal(t, "unknown", version)

	_, ok = versionFrom(float64(3))
	assert.False(t, ok)

	_, ok = versionFrom(nil)
	assert.False(t, ok)

	_, ok = versionFrom([]any{"3.1"})
	assert.False(t, ok)
}
