package json

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalHasNoTrailingNewlineOrHTMLEscape(t *testing.T) {
	out, err := Marshal(map[string]string{"k": "<a&b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"<a&b>"}`, string(out))
}

func TestDecoderKeepsNumbers(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"n": 12345678901234567890}`))
	var v map[string]interface{}
	require.NoError(t, dec.Decode(&v))

	n, ok := v["n"].(Number)
	require.True(t, ok, "expected Number, got %T", v["n"])
	assert.Equal(t, "12345678901234567890", n.String())
}

func TestBufferPoolResets(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("dirty")
	PutBuffer(buf)

	again := GetBuffer()
	defer PutBuffer(again)
	assert.Equal(t, 0, again.Len())
}
