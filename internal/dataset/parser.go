package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ParseError describes input that cannot be read as a table. Row is the
// 1-indexed data row (the header is row 0); Column is set when one cell is at fault.
type ParseError struct {
	Row    int    `json:"row"`
	Column string `json:"column,omitempty"`
	Msg    string `json:"message"`
}

func (e *ParseError) Error() string {
	switch {
	case e.Column != "":
		return fmt.Sprintf("row %d, column %q: %s", e.Row, e.Column, e.Msg)
	case e.Row > 0:
		return fmt.Sprintf("row %d: %s", e.Row, e.Msg)
	default:
		return e.Msg
	}
}

// Warning is a non-fatal issue found while parsing.
type Warning struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ParseResult is a parsed table plus its warnings and source encoding.
type ParseResult struct {
	Table    *Table    `json:"table"`
	Warnings []Warning `json:"warnings"`
	Encoding string    `json:"encoding"`
}

// MaxColumns guards against binary uploads that happen to tokenize as CSV.
const MaxColumns = 1024

// Parse reads a CSV document with a mandatory header row.
// Short rows are padded with blanks and reported as warnings; rows with more
// fields than the header, broken quoting and non-text input are errors.
func Parse(r io.Reader) (*ParseResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return ParseBytes(data)
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) (*ParseResult, error) {
	decoded, enc, err := DetectAndDecode(data)
	if err != nil {
		return nil, &ParseError{Msg: fmt.Sprintf("unreadable text encoding: %v", err)}
	}

	if bytes.IndexByte(decoded, 0) >= 0 {
		return nil, &ParseError{Msg: "file does not look like a CSV text file"}
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Msg: "empty file: a header row is required"}
		}
		return nil, &ParseError{Msg: fmt.Sprintf("failed to read header row: %v", err)}
	}
	if len(header) > MaxColumns {
		return nil, &ParseError{Msg: fmt.Sprintf("header has %d columns, at most %d are supported", len(header), MaxColumns)}
	}

	table := New(header)
	var warnings []Warning
	rowNum := 0

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowNum++

		if err != nil {
			return nil, &ParseError{Row: rowNum, Msg: fmt.Sprintf("malformed CSV: %v", err)}
		}

		switch {
		case len(row) > len(header):
			return nil, &ParseError{
				Row: rowNum,
				Msg: fmt.Sprintf("row has %d fields, header has %d", len(row), len(header)),
			}
		case len(row) < len(header):
			warnings = append(warnings, Warning{
				Row:     rowNum,
				Message: fmt.Sprintf("row has %d fields, expected %d; padding with blanks", len(row), len(header)),
			})
			padded := make([]string, len(header))
			copy(padded, row)
			row = padded
		}

		table.Rows = append(table.Rows, row)
	}

	return &ParseResult{
		Table:    table,
		Warnings: warnings,
		Encoding: enc,
	}, nil
}
