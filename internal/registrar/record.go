// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registrar

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode/utf8"
)

const (
	// FieldRecordKey is the column whose value keys each record in the output.
	FieldRecordKey = "etd record key"
	// FieldDegreeStatusDate is blank for students who have not graduated.
	FieldDegreeStatusDate = "degree status date"

	byteOrderMark = "\uFEFF"
)

// Record is one CSV row keyed by normalized header name.
type Record map[string]string

// Lookup returns the value of field, or a MissingRequiredField error when
// the row has no such column.
func (r Record) Lookup(field string) (string, error) {
	v, ok := r[field]
	if !ok {
		e := newError(MissingRequiredField, "missing required field %q", field)
		e.Field = field
		return "", e
	}
	return v, nil
}

// Key returns the record key.
func (r Record) Key() (string, error) {
	return r.Lookup(FieldRecordKey)
}

// Graduated reports whether the degree status date is non-blank.
func (r Record) Graduated() (bool, error) {
	v, err := r.Lookup(FieldDegreeStatusDate)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(v) != "", nil
}

// MarshalJSON writes the record as a compact object with keys in sorted
// order and without HTML escaping.
func (r Record) MarshalJSON() ([]byte, error) {
	return marshalCompact(map[string]string(r))
}

// marshalCompact is json.Marshal without HTML escaping. encoding/json
// already orders map keys by byte value, which for UTF-8 is code point
// order.
func marshalCompact(v any) ([]byte, error) {
	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// Encoder terminates each value with a newline.
	return bytes.TrimSuffix(b.Bytes(), []byte("\n")), nil
}

// NormalizeHeaders returns the header row with the byte-order-mark artifact
// removed from the first cell and every name lowercased. The input slice
// is not modified.
//
// Some exporters write a BOM and then quote the first header, which a
// lenient CSV reader hands back as U+FEFF followed by `"ETD Record Key"`.
// The name is the text between the first pair of quotes.
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	copy(out, headers)
	if len(out) > 0 {
		out[0] = stripMark(out[0])
	}
	for i, h := range out {
		out[i] = strings.ToLower(h)
	}
	return out
}

// checkHeaders rejects header names that are not valid UTF-8. It runs on
// the raw row, since lowercasing would already replace bad bytes.
func checkHeaders(raw []string) error {
	for i, h := range raw {
		if !utf8.ValidString(h) {
			return newError(MalformedInput, "header %d (%q) is not valid UTF-8", i+1, h)
		}
	}
	return nil
}

func stripMark(cell string) string {
	rest, ok := strings.CutPrefix(cell, byteOrderMark)
	if !ok {
		return cell
	}
	if !strings.HasPrefix(rest, `"`) {
		return rest
	}
	parts := strings.SplitN(rest, `"`, 3)
	return parts[1]
}

// newRecord pairs headers with the cells of one row. Cells beyond the
// header width are an error; missing trailing cells leave the column out.
func newRecord(headers, cells []string) (Record, error) {
	if len(cells) > len(headers) {
		return nil, newError(MalformedInput, "row has %d fields, header has %d", len(cells), len(headers))
	}
	rec := make(Record, len(cells))
	for i, v := range cells {
		if !utf8.ValidString(v) {
			e := newError(MalformedInput, "field %q is not valid UTF-8", headers[i])
			e.Field = headers[i]
			return nil, e
		}
		rec[headers[i]] = v
	}
	return rec, nil
}
