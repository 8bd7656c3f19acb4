// Package dsv reads and writes delimiter-separated values with a configurable
// quote character.
//
// The dialect follows RFC 4180 with two parameters: the field delimiter and
// the quote character. Fields containing the delimiter, the quote character
// or a line break are quoted, and quote characters inside them are doubled.
// The reader is strict: a quote character inside an unquoted field, text
// after a closing quote, an unterminated quoted field or a record whose
// width differs from the first record are reported as QuoteMismatch errors,
// which is how a file written with a different quote character shows up.
package dsv

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ajitpratap0/gridio/pkg/errors"
)

// Dialect selects the delimiter and quote character.
type Dialect struct {
	Comma rune
	Quote rune
}

// Default is comma separated with double quotes.
var Default = Dialect{Comma: ',', Quote: '"'}

// WithQuote returns the default dialect using q as quote character. A zero
// rune keeps the default.
func WithQuote(q rune) Dialect {
	d := Default
	if q != 0 {
		d.Quote = q
	}
	return d
}

func validRune(r rune) bool {
	return r != 0 && r != '\r' && r != '\n' && utf8.ValidRune(r) && r != utf8.RuneError
}

// Validate checks that the dialect is usable.
func (d Dialect) Validate() error {
	if !validRune(d.Comma) {
		return errors.Newf(errors.ErrorTypeConfig, "invalid delimiter %q", d.Comma)
	}
	if !validRune(d.Quote) {
		return errors.Newf(errors.ErrorTypeConfig, "invalid quote character %q", d.Quote)
	}
	if d.Comma == d.Quote {
		return errors.Newf(errors.ErrorTypeConfig, "quote character %q equals the delimiter", d.Quote)
	}
	return nil
}

var (
	ErrBareQuote    = stderrors.New("quote character in unquoted field")
	ErrTrailingText = stderrors.New("text after closing quote")
	ErrUnterminated = stderrors.New("unterminated quoted field")
	ErrFieldCount   = stderrors.New("wrong number of fields")
)

// ParseError locates a parse failure.
type ParseError struct {
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("record on line %d, field %d: %v", e.Line, e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Reader reads records from delimited text.
type Reader struct {
	// FieldsPerRecord is the expected width of every record. Zero means
	// the width of the first record; negative disables the check.
	FieldsPerRecord int

	dialect Dialect
	br      *bufio.Reader
	line    int
}

// NewReader returns a reader for d. The dialect must be valid.
func NewReader(r io.Reader, d Dialect) *Reader {
	return &Reader{dialect: d, br: bufio.NewReader(r)}
}

// Read returns the next record, or io.EOF. Blank lines are skipped.
func (r *Reader) Read() ([]string, error) {
	for {
		start := r.line + 1
		record, err := r.readRecord()
		if err != nil {
			return nil, err
		}
		if record == nil {
			continue
		}
		if r.FieldsPerRecord == 0 {
			r.FieldsPerRecord = len(record)
		} else if r.FieldsPerRecord > 0 && len(record) != r.FieldsPerRecord {
			return nil, r.fail(&ParseError{Line: start, Column: len(record), Err: ErrFieldCount})
		}
		return record, nil
	}
}

// ReadAll reads the remaining records.
func (r *Reader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
}

func (r *Reader) fail(pe *ParseError) error {
	return errors.Wrapf(pe, errors.ErrorTypeQuoteMismatch, "cannot parse delimited text with quote character %q", r.dialect.Quote)
}

// next returns the next rune, folding \r\n into \n. Quoted fields are
// read with raw so that line breaks inside them are kept as written.
func (r *Reader) next() (rune, error) {
	c, err := r.raw()
	if err != nil {
		return 0, err
	}
	if c == '\r' {
		if p, _, err := r.br.ReadRune(); err == nil {
			if p == '\n' {
				return '\n', nil
			}
			_ = r.br.UnreadRune()
		}
	}
	return c, nil
}

func (r *Reader) raw() (rune, error) {
	c, _, err := r.br.ReadRune()
	return c, err
}

// readRecord parses one record. A blank line yields nil.
func (r *Reader) readRecord() ([]string, error) {
	comma, quote := r.dialect.Comma, r.dialect.Quote

	c, err := r.next()
	if err != nil {
		return nil, err
	}
	r.line++
	start := r.line
	if c == '\n' {
		return nil, nil
	}

	var (
		fields []string
		b      strings.Builder
	)
	for {
		b.Reset()
		if c == quote {
			for {
				c, err = r.raw()
				if err == io.EOF {
					return nil, r.fail(&ParseError{Line: start, Column: len(fields) + 1, Err: ErrUnterminated})
				}
				if err != nil {
					return nil, err
				}
				if c == quote {
					c, err = r.next()
					if err == nil && c == quote {
						b.WriteRune(quote)
						continue
					}
					break
				}
				if c == '\n' {
					r.line++
				}
				b.WriteRune(c)
			}
			if err == nil && c != comma && c != '\n' {
				return nil, r.fail(&ParseError{Line: r.line, Column: len(fields) + 1, Err: ErrTrailingText})
			}
		} else {
			for err == nil && c != comma && c != '\n' {
				if c == quote {
					return nil, r.fail(&ParseError{Line: r.line, Column: len(fields) + 1, Err: ErrBareQuote})
				}
				b.WriteRune(c)
				c, err = r.next()
			}
		}
		if err != nil && err != io.EOF {
			return nil, err
		}
		fields = append(fields, b.String())
		if err == io.EOF || c == '\n' {
			return fields, nil
		}

		// delimiter: start the next field
		c, err = r.next()
		if err == io.EOF {
			return append(fields, ""), nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Writer writes records as delimited text.
type Writer struct {
	dialect Dialect
	w       *bufio.Writer
}

// NewWriter returns a writer for d. The dialect must be valid.
func NewWriter(w io.Writer, d Dialect) *Writer {
	return &Writer{dialect: d, w: bufio.NewWriter(w)}
}

// Write writes one record terminated by \n.
func (w *Writer) Write(record []string) error {
	for i, field := range record {
		if i > 0 {
			if _, err := w.w.WriteRune(w.dialect.Comma); err != nil {
				return err
			}
		}
		// a lone empty field would read back as a blank line
		if !w.needsQuotes(field) && !(field == "" && len(record) == 1) {
			if _, err := w.w.WriteString(field); err != nil {
				return err
			}
			continue
		}
		if err := w.writeQuoted(field); err != nil {
			return err
		}
	}
	_, err := w.w.WriteRune('\n')
	return err
}

// WriteAll writes records and flushes.
func (w *Writer) WriteAll(records [][]string) error {
	for _, record := range records {
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func (w *Writer) writeQuoted(field string) error {
	q := w.dialect.Quote
	if _, err := w.w.WriteRune(q); err != nil {
		return err
	}
	for _, c := range field {
		if c == q {
			if _, err := w.w.WriteRune(q); err != nil {
				return err
			}
		}
		if _, err := w.w.WriteRune(c); err != nil {
			return err
		}
	}
	_, err := w.w.WriteRune(q)
	return err
}

func (w *Writer) needsQuotes(field string) bool {
	if field == "" {
		return false
	}
	return strings.ContainsRune(field, w.dialect.Comma) ||
		strings.ContainsRune(field, w.dialect.Quote) ||
		strings.ContainsAny(field, "\r\n")
}
