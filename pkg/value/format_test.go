package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringRendering(t *testing.T) {
	assert.Equal(t, "90", FromU8(90).String())
	assert.Equal(t, "-3", FromI16(-3).String())
	assert.Equal(t, "0x5A", FromX8(0x5A).String())
	assert.Equal(t, "0xDEADBEEF", FromX32(0xDEADBEEF).String())
	assert.Equal(t, "1.5", FromFloat32(1.5).String())
	assert.Equal(t, "hello", FromString("hello").String())
	assert.Equal(t, "(empty)", Empty.String())
}

func TestParseRoundTrip(t *testing.T) {
	cases := []struct {
		tag Tag
		in  string
	}{
		{U8, "200"},
		{I8, "-100"},
		{X16, "0xBEEF"},
		{U32, "4000000000"},
		{I32, "-2000000000"},
		{FLT, "3.25"},
		{STR, "node-a"},
	}
	for _, tc := range cases {
		v, err := Parse(tc.tag, tc.in)
		require.NoError(t, err, "parse %s as %s", tc.in, TypeString(tc.tag))
		assert.Equal(t, tc.tag, v.Tag)
		back, err := Parse(tc.tag, v.String())
		require.NoError(t, err)
		assert.Equal(t, v, back)
	}
}

func TestParseRejectsOutOfRange(t *testing.T) {
	_, err := Parse(U8, "256")
	assert.Error(t, err)
	_, err = Parse(I8, "128")
	assert.Error(t, err)
	_, err = Parse(U16, "not-a-number")
	assert.Error(t, err)
	_, err = Parse(EMPTY, "1")
	assert.ErrorIs(t, err, ErrUnknownTag)
}
