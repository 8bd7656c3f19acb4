package schema

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/relvacode/iso8601"
	"go.uber.org/zap"
)

// TypeInferenceEngine detects the dtype of text columns that arrive without a
// declared type, such as CSV cells of attributes that are not in the schema.
type TypeInferenceEngine struct {
	logger *zap.Logger

	timestampPatterns []*regexp.Regexp
	wktPattern        *regexp.Regexp

	// sampleSize caps how many non-empty cells are inspected; 0 means all
	sampleSize int
}

// InferredType is the result of inferring a column's dtype
type InferredType struct {
	Type DType `json:"type"`
	// Nullable is set when at least one cell is empty
	Nullable bool `json:"nullable"`
	// Samples is the number of non-empty cells inspected
	Samples int `json:"samples"`
}

// NewTypeInferenceEngine creates a new type inference engine
func NewTypeInferenceEngine(logger *zap.Logger) *TypeInferenceEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := &TypeInferenceEngine{logger: logger}
	engine.initializePatterns()
	return engine
}

// WithSampleSize limits inference to the first n non-empty cells.
func (e *TypeInferenceEngine) WithSampleSize(n int) *TypeInferenceEngine {
	e.sampleSize = n
	return e
}

// InferType picks the narrowest dtype every non-empty cell parses as, trying
// int, float, bool, time, geometry and finally string. A column of only empty
// cells is a float column of missing values.
func (e *TypeInferenceEngine) InferType(name string, values []string) *InferredType {
	inferred := &InferredType{Type: Float}

	candidates := []DType{Int, Float, Bool, Time, Geometry}
	alive := map[DType]bool{Int: true, Float: true, Bool: true, Time: true, Geometry: true}

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			inferred.Nullable = true
			continue
		}
		if e.sampleSize > 0 && inferred.Samples >= e.sampleSize {
			continue
		}
		inferred.Samples++
		for _, c := range candidates {
			if alive[c] && !e.matches(c, v) {
				alive[c] = false
			}
		}
	}

	if inferred.Samples == 0 {
		return inferred
	}

	inferred.Type = String
	for _, c := range candidates {
		if alive[c] {
			inferred.Type = c
			break
		}
	}
	// ints with gaps cannot be represented without a sentinel
	if inferred.Type == Int && inferred.Nullable {
		inferred.Type = Float
	}

	e.logger.Debug("inferred column type",
		zap.String("column", name),
		zap.String("type", string(inferred.Type)),
		zap.Bool("nullable", inferred.Nullable),
		zap.Int("samples", inferred.Samples))
	return inferred
}

func (e *TypeInferenceEngine) matches(t DType, v string) bool {
	switch t {
	case Int:
		return e.isInteger(v)
	case Float:
		return e.isFloat(v)
	case Bool:
		return e.isBoolean(v)
	case Time:
		return e.isTimestamp(v)
	case Geometry:
		return e.wktPattern.MatchString(v)
	default:
		return true
	}
}

func (e *TypeInferenceEngine) isBoolean(s string) bool {
	_, ok := ParseBool(s)
	return ok
}

func (e *TypeInferenceEngine) isInteger(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func (e *TypeInferenceEngine) isFloat(s string) bool {
	_, err := ParseFloat(s)
	return err == nil
}

func (e *TypeInferenceEngine) isTimestamp(s string) bool {
	matched := false
	for _, p := range e.timestampPatterns {
		if p.MatchString(s) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	_, err := ParseTime(s)
	return err == nil
}

func (e *TypeInferenceEngine) initializePatterns() {
	e.timestampPatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),                 // date
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}(:\d{2})?`), // ISO 8601
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}(:\d{2})?`), // SQL timestamp
	}
	e.wktPattern = regexp.MustCompile(`^(?i)((MULTI)?(POINT|LINESTRING|POLYGON)|GEOMETRYCOLLECTION)\s*(Z|M|ZM)?\s*(\(|EMPTY)`)
}

// ParseBool accepts the spellings written by common dataframe tools.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// ParseFloat parses a float cell, including the spellings "inf", "-inf" and "nan".
func ParseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// ParseTime parses an ISO 8601 timestamp. A space may separate the date and
// the time, and a value without zone designator is taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && s[10] == ' ' {
		s = s[:10] + "T" + s[11:]
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		// date-only labels
		d, derr := time.Parse("2006-01-02", s)
		if derr != nil {
			return time.Time{}, err
		}
		t = d
	}
	return t.UTC(), nil
}
