// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registrar

import (
	"bufio"
	"fmt"
	"io"
)

// DocumentWriter streams a JSON object of records, one member per call to
// Write. Members are separated by ",\n"; nothing is buffered beyond the
// underlying bufio.Writer.
type DocumentWriter struct {
	w       *bufio.Writer
	written int
	bytes   int64
	closed  bool
}

// NewDocumentWriter returns a writer that emits the document to w.
func NewDocumentWriter(w io.Writer) *DocumentWriter {
	return &DocumentWriter{w: bufio.NewWriterSize(w, 64*1024)}
}

// Write appends rec under key.
func (d *DocumentWriter) Write(key string, rec Record) error {
	if d.closed {
		return fmt.Errorf("document already closed")
	}
	k, err := marshalCompact(key)
	if err != nil {
		return fmt.Errorf("encoding key %q: %w", key, err)
	}
	body, err := rec.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding record %q: %w", key, err)
	}

	sep := "{"
	if d.written > 0 {
		sep = ",\n"
	}
	for _, chunk := range [][]byte{[]byte(sep), k, []byte(":"), body} {
		n, err := d.w.Write(chunk)
		d.bytes += int64(n)
		if err != nil {
			return err
		}
	}
	d.written++
	return nil
}

// Close ends the object and flushes. An empty document is written as "{}".
// Close does not close the underlying writer.
func (d *DocumentWriter) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	tail := "}"
	if d.written == 0 {
		tail = "{}"
	}
	n, err := d.w.WriteString(tail)
	d.bytes += int64(n)
	if err != nil {
		return err
	}
	return d.w.Flush()
}

// Written returns the number of records written so far.
func (d *DocumentWriter) Written() int { return d.written }

// Bytes returns the number of bytes handed to the buffer so far.
func (d *DocumentWriter) Bytes() int64 { return d.bytes }
