package meta

import (
	"bytes"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/ajitpratap0/gridio/pkg/errors"
	"github.com/ajitpratap0/gridio/pkg/json"
)

// Encode renders v as a JSON document. Map keys keep their order.
func Encode(v Value) (string, error) {
	buf := json.GetBuffer()
	defer json.PutBuffer(buf)

	if err := encodeValue(buf, v); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func encodeValue(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		f, ok := v.AsFloat()
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.Newf(errors.ErrorTypeConfig, "metadata number %q cannot be encoded", v.num)
		}
		buf.WriteString(v.num)
	case KindString:
		return writeString(buf, v.s)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, k := range v.m.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encodeValue(buf, v.m.values[k]); err != nil {
				return errors.Propagate(err, errors.ErrorTypeConfig, "metadata key "+strconv.Quote(k))
			}
		}
		buf.WriteByte('}')
	default:
		return errors.Newf(errors.ErrorTypeInternal, "unknown metadata kind %s", v.kind)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	out, err := json.MarshalString(s)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to encode metadata string")
	}
	buf.Write(out)
	return nil
}

// Decode parses a document produced by Encode. An empty string decodes to an
// empty map, which is what a network without metadata carries.
func Decode(s string) (Value, error) {
	if strings.TrimSpace(s) == "" {
		return Map(), nil
	}

	dec := json.NewDecoder(strings.NewReader(s))
	v, err := decodeValue(dec)
	if err != nil {
		return Null(), errors.Wrap(err, errors.ErrorTypeSourceUnreadable, "failed to decode metadata")
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err != nil {
			return Null(), errors.Wrap(err, errors.ErrorTypeSourceUnreadable, "failed to decode metadata")
		}
		return Null(), errors.Newf(errors.ErrorTypeSourceUnreadable, "unexpected trailing metadata token %v", tok)
	}
	return v, nil
}

type tokenDecoder interface {
	Token() (json.Token, error)
	More() bool
}

func decodeValue(dec tokenDecoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Null(), err
	}

	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		// the literal aliases the decoder buffer
		return number(strings.Clone(t.String())), nil
	case float64:
		return Float(t), nil
	case json.Delim:
		switch t {
		case '[':
			var items []Value
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Null(), err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			return List(items...), nil
		case '{':
			var entries []Entry
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Null(), err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Null(), errors.Newf(errors.ErrorTypeSourceUnreadable, "metadata key must be a string, got %v", keyTok)
				}
				item, err := decodeValue(dec)
				if err != nil {
					return Null(), err
				}
				entries = append(entries, Entry{Key: key, Value: item})
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			return Map(entries...), nil
		}
	}
	return Null(), errors.Newf(errors.ErrorTypeSourceUnreadable, "unexpected metadata token %v", tok)
}
