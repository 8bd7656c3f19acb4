// Package policy decides how floating-point columns are stored: at 32 or 64
// bit width, quantized to a number of decimal digits or not, and with which
// compression filter.
package policy

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ajitpratap0/gridio/pkg/compression"
)

// Compression names a compression filter and an optional quantization.
type Compression struct {
	Algorithm compression.Algorithm `json:"algorithm" yaml:"algorithm" mapstructure:"algorithm"`
	Level     compression.Level     `json:"level,omitempty" yaml:"level,omitempty" mapstructure:"level"`
	// LeastSignificantDigit keeps this many decimal digits after the point;
	// nil disables quantization
	LeastSignificantDigit *int `json:"least_significant_digit,omitempty" yaml:"least_significant_digit,omitempty" mapstructure:"least_significant_digit"`
}

// Policy is the precision and compression choice of one export.
type Policy struct {
	Float32     bool         `json:"float32" yaml:"float32" mapstructure:"float32"`
	Compression *Compression `json:"compression,omitempty" yaml:"compression,omitempty" mapstructure:"compression"`
}

// Exact is the policy that stores every value unchanged and uncompressed.
func Exact() *Policy {
	return &Policy{}
}

// Lossless returns a policy compressing with a at level, without quantization.
func Lossless(a compression.Algorithm, level compression.Level) *Policy {
	return &Policy{Compression: &Compression{Algorithm: a, Level: level}}
}

// Digits returns a pointer to d, for LeastSignificantDigit literals.
func Digits(d int) *int {
	return &d
}

// Validate rejects unknown algorithms, out of range levels and negative digits.
func (p *Policy) Validate() error {
	if p == nil || p.Compression == nil {
		return nil
	}
	c := p.Compression
	if _, err := compression.ParseAlgorithm(string(c.Algorithm)); err != nil {
		return err
	}
	if c.Level < 0 || c.Level > compression.Best {
		return fmt.Errorf("compression level %d out of range 0..%d", c.Level, compression.Best)
	}
	if c.LeastSignificantDigit != nil && (*c.LeastSignificantDigit < 0 || *c.LeastSignificantDigit > 15) {
		return fmt.Errorf("least significant digit %d out of range 0..15", *c.LeastSignificantDigit)
	}
	return nil
}

// Algorithm returns the compression algorithm, None when unset.
func (p *Policy) Algorithm() compression.Algorithm {
	if p == nil || p.Compression == nil || p.Compression.Algorithm == "" {
		return compression.None
	}
	return p.Compression.Algorithm
}

// Level returns the compression level, 0 when unset.
func (p *Policy) Level() compression.Level {
	if p == nil || p.Compression == nil {
		return 0
	}
	return p.Compression.Level
}

// Quantized reports whether values are rounded to LeastSignificantDigit.
func (p *Policy) Quantized() bool {
	return p != nil && p.Compression != nil && p.Compression.LeastSignificantDigit != nil
}

// Lossy reports whether applying the policy may change stored values.
func (p *Policy) Lossy() bool {
	return p != nil && (p.Float32 || p.Quantized())
}

// Tolerance is the largest absolute error quantization may introduce, 0 when
// values are not quantized. float32 narrowing adds a relative error on top.
func (p *Policy) Tolerance() float64 {
	if !p.Quantized() {
		return 0
	}
	return math.Pow(10, -float64(*p.Compression.LeastSignificantDigit))
}

// Apply returns the values as they will be stored. Quantization rounds to
// a power-of-two grid fine enough to keep LeastSignificantDigit decimals;
// with Float32 set the result is narrowed to float32 precision. NaN and
// infinities pass unchanged. The input is not modified.
func (p *Policy) Apply(values []float64) []float64 {
	if !p.Lossy() {
		return values
	}
	out := make([]float64, len(values))
	copy(out, values)

	if p.Quantized() {
		scale := math.Exp2(float64(bits(*p.Compression.LeastSignificantDigit)))
		for i, v := range out {
			q := v * scale
			if math.IsNaN(q) || math.IsInf(q, 0) {
				continue
			}
			out[i] = math.Round(q) / scale
		}
	}
	if p.Float32 {
		for i, v := range out {
			out[i] = float64(float32(v))
		}
	}
	return out
}

// bits is the number of binary fraction digits that resolve d decimal digits.
func bits(d int) int {
	return int(math.Ceil(float64(d) * math.Log2(10)))
}

// Report describes what an export did to the stored values. It is not an
// error: callers asked for the loss.
type Report struct {
	Float32               bool                  `json:"float32"`
	Algorithm             compression.Algorithm `json:"algorithm"`
	Level                 compression.Level     `json:"level,omitempty"`
	LeastSignificantDigit *int                  `json:"least_significant_digit,omitempty"`
	Lossy                 bool                  `json:"lossy"`
	// Columns counts the float columns the policy was applied to
	Columns int `json:"columns"`
}

// Report summarises p for a persisted artifact.
func (p *Policy) Report(columns int) Report {
	r := Report{
		Float32:   p != nil && p.Float32,
		Algorithm: p.Algorithm(),
		Level:     p.Level(),
		Lossy:     p.Lossy(),
		Columns:   columns,
	}
	if p.Quantized() {
		d := *p.Compression.LeastSignificantDigit
		r.LeastSignificantDigit = &d
	}
	return r
}

// Policy reconstructs the policy a report was produced with.
func (r Report) Policy() *Policy {
	p := &Policy{Float32: r.Float32}
	if (r.Algorithm != compression.None && r.Algorithm != "") || r.LeastSignificantDigit != nil {
		p.Compression = &Compression{Algorithm: r.Algorithm, Level: r.Level, LeastSignificantDigit: r.LeastSignificantDigit}
	}
	return p
}

// ParseCompression parses "algorithm[:level[:digits]]". "none" and "" yield nil.
func ParseCompression(s string) (*Compression, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, string(compression.None)) {
		return nil, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return nil, fmt.Errorf("invalid compression %q: want algorithm[:level[:digits]]", s)
	}
	a, err := compression.ParseAlgorithm(parts[0])
	if err != nil {
		return nil, err
	}
	c := &Compression{Algorithm: a}
	if len(parts) > 1 && parts[1] != "" {
		level, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid compression level %q: %w", parts[1], err)
		}
		c.Level = compression.Level(level)
	}
	if len(parts) > 2 && parts[2] != "" {
		d, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("invalid least significant digit %q: %w", parts[2], err)
		}
		c.LeastSignificantDigit = &d
	}
	if err := (&Policy{Compression: c}).Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// String renders the compression in the form ParseCompression accepts.
func (c *Compression) String() string {
	if c == nil {
		return string(compression.None)
	}
	s := string(c.Algorithm)
	if c.Level != 0 || c.LeastSignificantDigit != nil {
		s += ":" + strconv.Itoa(int(c.Level))
	}
	if c.LeastSignificantDigit != nil {
		s += ":" + strconv.Itoa(*c.LeastSignificantDigit)
	}
	return s
}
