// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registrar converts the registrar's CSV export of graduation
// records into the JSON document consumed by the graduation service.
//
// The document is one JSON object keyed by each row's "etd record key".
// Rows are read and written one at a time, so memory use depends on row
// width and not on the size of the export.
package registrar

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/registrar-json/pkg/types"
)

// Summary describes a completed conversion.
type Summary struct {
	// Rows is the number of data rows read, excluding the header.
	Rows int `json:"rows" yaml:"rows"`
	// Written is the number of records in the output document.
	Written int `json:"written" yaml:"written"`
	// Skipped is the number of rows dropped by the graduates-only filter.
	Skipped int `json:"skipped" yaml:"skipped"`

	SourceBytes int64 `json:"source_bytes" yaml:"source_bytes"`
	OutputBytes int64 `json:"output_bytes" yaml:"output_bytes"`
}

// Converter runs conversions with a fixed configuration.
type Converter struct {
	cfg types.ConversionConfig
	log zerolog.Logger
}

// New returns a Converter. Pass zerolog.Nop() to disable logging.
func New(cfg types.ConversionConfig, log zerolog.Logger) *Converter {
	return &Converter{cfg: cfg, log: log}
}

// Convert converts with cfg and no logging. See Converter.Convert.
func Convert(cfg types.ConversionConfig, csvPath, jsonPath string) (Summary, error) {
	return New(cfg, zerolog.Nop()).Convert(csvPath, jsonPath)
}

// Convert checks preconditions, then streams csvPath into a JSON document
// at jsonPath. The document appears at jsonPath only if every row was
// processed; on error the destination is untouched. The source is never
// modified.
func (c *Converter) Convert(csvPath, jsonPath string) (Summary, error) {
	start := time.Now()

	src, err := CheckPreconditions(c.cfg, csvPath, jsonPath)
	if err != nil {
		return Summary{}, err
	}

	in, err := os.Open(csvPath)
	if err != nil {
		e := wrapError(err, FilesystemError, "opening source %s", csvPath)
		e.Path = csvPath
		return Summary{}, e
	}
	defer in.Close()

	var sum Summary
	err = withWriteFile(jsonPath, func(w io.Writer) error {
		var err error
		sum, err = c.Transcode(in, w)
		return err
	})
	if err != nil {
		return Summary{}, err
	}
	sum.SourceBytes = src.Size()

	c.log.Info().
		Str("source", csvPath).
		Str("destination", jsonPath).
		Str("mode", c.cfg.Mode()).
		Int("rows", sum.Rows).
		Int("written", sum.Written).
		Int("skipped", sum.Skipped).
		Dur("elapsed", time.Since(start)).
		Msg("conversion complete")
	return sum, nil
}

// Transcode reads CSV from r and writes the JSON document to w. It does
// not check preconditions and does not close either side. On error, w may
// hold a partial document.
func (c *Converter) Transcode(r io.Reader, w io.Writer) (Summary, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	raw, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Summary{}, newError(MalformedInput, "source has no header row")
	}
	if err != nil {
		return Summary{}, readError(err, "reading header")
	}
	if err := checkHeaders(raw); err != nil {
		return Summary{}, err
	}
	headers := NormalizeHeaders(raw)

	doc := NewDocumentWriter(w)
	var sum Summary
	for {
		cells, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		sum.Rows++
		if err != nil {
			e := readError(err, "parsing CSV")
			e.Row = sum.Rows
			return sum, e
		}

		rec, err := newRecord(headers, cells)
		if err != nil {
			return sum, atRow(err, sum.Rows)
		}

		if c.cfg.IncludeOnlyGraduates {
			graduated, err := rec.Graduated()
			if err != nil {
				return sum, atRow(err, sum.Rows)
			}
			if !graduated {
				sum.Skipped++
				c.log.Debug().Int("row", sum.Rows).Msg("skipping row without degree status date")
				continue
			}
		}

		key, err := rec.Key()
		if err != nil {
			return sum, atRow(err, sum.Rows)
		}
		if err := doc.Write(key, rec); err != nil {
			e := wrapError(err, FilesystemError, "writing record %q", key)
			e.Row = sum.Rows
			return sum, e
		}
	}

	if err := doc.Close(); err != nil {
		return sum, wrapError(err, FilesystemError, "finishing document")
	}
	sum.Written = doc.Written()
	sum.OutputBytes = doc.Bytes()
	return sum, nil
}

// readError separates parser rejections from I/O failures on the source.
func readError(err error, msg string) *Error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return wrapError(err, MalformedInput, "%s", msg)
	}
	return wrapError(err, FilesystemError, "%s", msg)
}

func atRow(err error, row int) error {
	if e, ok := AsError(err); ok {
		e.Row = row
		return e
	}
	return fmt.Errorf("row %d: %w", row, err)
}
