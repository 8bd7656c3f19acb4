package policy

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/gridio/pkg/compression"
)

func randomValues(n int) []float64 {
	r := rand.New(rand.NewSource(42))
	out := make([]float64, n)
	for i := range out {
		out[i] = (r.Float64() - 0.5) * 2000
	}
	return out
}

func TestExactPolicyLeavesValuesUntouched(t *testing.T) {
	values := randomValues(100)
	for _, p := range []*Policy{nil, Exact(), Lossless(compression.Zlib, 4)} {
		assert.False(t, p.Lossy())
		assert.Equal(t, values, p.Apply(values))
	}
}

func TestQuantizationBound(t *testing.T) {
	values := randomValues(1000)
	for _, d := range []int{0, 1, 3, 5, 8} {
		p := &Policy{Compression: &Compression{Algorithm: compression.Zlib, LeastSignificantDigit: Digits(d)}}
		require.True(t, p.Lossy())

		got := p.Apply(values)
		bound := math.Pow(10, -float64(d))
		assert.Equal(t, bound, p.Tolerance())
		for i := range values {
			assert.Less(t, math.Abs(values[i]-got[i]), bound, "d=%d value %v", d, values[i])
		}
	}
}

func TestApplyKeepsSpecialValues(t *testing.T) {
	p := &Policy{Float32: true, Compression: &Compression{Algorithm: compression.Zstd, LeastSignificantDigit: Digits(15)}}
	in := []float64{math.NaN(), math.Inf(1), math.Inf(-1), 1e300}
	got := p.Apply(in)
	assert.True(t, math.IsNaN(got[0]))
	assert.True(t, math.IsInf(got[1], 1))
	assert.True(t, math.IsInf(got[2], -1))
	assert.True(t, math.IsInf(got[3], 1), "1e300 overflows float32")
	assert.Equal(t, 1e300, in[3], "input unchanged")
}

func TestFloat32Narrowing(t *testing.T) {
	p := &Policy{Float32: true}
	got := p.Apply([]float64{0.1, 1.0 / 3})
	assert.Equal(t, float64(float32(0.1)), got[0])
	assert.NotEqual(t, 0.1, got[0])
	assert.InEpsilon(t, 1.0/3, got[1], 1e-7)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("zlib:4:5")
	require.NoError(t, err)
	assert.Equal(t, compression.Zlib, c.Algorithm)
	assert.Equal(t, compression.Level(4), c.Level)
	require.NotNil(t, c.LeastSignificantDigit)
	assert.Equal(t, 5, *c.LeastSignificantDigit)
	assert.Equal(t, "zlib:4:5", c.String())

	c, err = ParseCompression("zstd")
	require.NoError(t, err)
	assert.Nil(t, c.LeastSignificantDigit)
	assert.Equal(t, "zstd", c.String())

	c, err = ParseCompression("none")
	require.NoError(t, err)
	assert.Nil(t, c)

	for _, bad := range []string{"brotli", "zlib:x", "zlib:4:-1", "zlib:11", "zlib:1:2:3"} {
		_, err := ParseCompression(bad)
		assert.Error(t, err, bad)
	}
}

func TestReportRoundTrip(t *testing.T) {
	p := &Policy{Float32: true, Compression: &Compression{Algorithm: compression.Zstd, Level: 3, LeastSignificantDigit: Digits(4)}}
	r := p.Report(7)
	assert.True(t, r.Lossy)
	assert.Equal(t, 7, r.Columns)
	assert.Equal(t, p, r.Policy())

	exact := Exact().Report(0)
	assert.False(t, exact.Lossy)
	assert.Nil(t, exact.Policy().Compression)
}
