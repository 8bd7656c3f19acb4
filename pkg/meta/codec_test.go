package meta

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridio/pkg/errors"
)

func TestRoundTripShapes(t *testing.T) {
	cases := map[string]Value{
		"flat":        Map(E("test", String("test"))),
		"flat two":    Map(E("test", String("test")), E("test2", String("test2"))),
		"nested":      Map(E("test", Map(E("test", String("test")), E("test2", String("test2"))))),
		"mixed types": Map(E("s", String("x")), E("i", Int(3)), E("f", Float(0.25)), E("b", Bool(true)), E("n", Null())),
		"deep":        Map(E("a", Map(E("b", Map(E("c", Map(E("d", List(Int(1), String("two"), Bool(false)))))))))),
		"empty":       Map(),
		"unicode":     Map(E("näme", String("line\nbreak \"quoted\", comma'"))),
	}

	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			encoded, err := Encode(v)
			require.NoError(t, err)

			decoded, err := Decode(encoded)
			require.NoError(t, err)
			assert.True(t, Equal(v, decoded), "decoded %s from %s", mustEncode(t, decoded), encoded)
		})
	}
}

func TestDecodePreservesKeyOrder(t *testing.T) {
	v, err := Decode(`{"z": 1, "a": 2, "m": {"y": true, "b": false}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, v.Keys())

	inner, ok := v.Get("m")
	require.True(t, ok)
	assert.Equal(t, []string{"y", "b"}, inner.Keys())

	out, err := Encode(v)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2,"m":{"y":true,"b":false}}`, out)
}

func TestEqualIgnoresMapOrder(t *testing.T) {
	a := Map(E("x", Int(1)), E("y", Int(2)))
	b := Map(E("y", Int(2)), E("x", Float(1)))
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, Map(E("x", Int(1)))))
	assert.False(t, Equal(String("1"), Int(1)))
}

func TestDecodeEmptyIsEmptyMap(t *testing.T) {
	v, err := Decode("  ")
	require.NoError(t, err)
	assert.Equal(t, KindMap, v.Kind())
	assert.Equal(t, 0, v.Len())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, in := range []string{`{"a":`, `{'a': 1}`, `[1, 2`, `{"a": 1} {"b": 2}`} {
		_, err := Decode(in)
		require.Error(t, err, in)
		assert.True(t, errors.IsType(err, errors.ErrorTypeSourceUnreadable), "input %q: %v", in, err)
	}
}

func TestEncodeRejectsNonFinite(t *testing.T) {
	_, err := Encode(Map(E("x", Float(math.NaN()))))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestFromAnyAndBack(t *testing.T) {
	v, err := FromAny(map[string]interface{}{
		"test":  map[string]interface{}{"test": "test", "test2": "test2"},
		"count": 3,
		"ratio": 0.5,
		"tags":  []interface{}{"a", true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"count", "ratio", "tags", "test"}, v.Keys())

	back := ToAny(v).(map[string]interface{})
	assert.Equal(t, int64(3), back["count"])
	assert.Equal(t, 0.5, back["ratio"])
	assert.Equal(t, []interface{}{"a", true}, back["tags"])

	_, err = FromAny(struct{}{})
	assert.Error(t, err)
}

func mustEncode(t *testing.T, v Value) string {
	t.Helper()
	s, err := Encode(v)
	require.NoError(t, err)
	return s
}
