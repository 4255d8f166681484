package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
)

// RowError reports one rejected CSV row.
type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportReport summarizes one CSV import run.
type ImportReport struct {
	Imported int        `json:"imported"`
	Failed   int        `json:"failed"`
	Errors   []RowError `json:"errors,omitempty"`
}

// ImportService loads entries from CSV files. Each row is validated on its
// own so one bad line never aborts the whole file.
type ImportService struct {
	ledger *LedgerService
}

func NewImportService(ledger *LedgerService) *ImportService {
	return &ImportService{ledger: ledger}
}

// ImportCSV reads rows of date,category,subject,amount and inserts the
// valid ones. Rows exported by this application (with a leading id column)
// are accepted too; the id is ignored and new ids are assigned. A header
// row and a UTF-8 BOM are detected and skipped; a header is not required,
// a headerless file starts with data on row 1.
func (s *ImportService) ImportCSV(ctx context.Context, r io.Reader) (*ImportReport, error) {
	decoded, err := decodeToUTF8(r)
	if err != nil {
		return nil, fmt.Errorf("reading import data: %w", err)
	}

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1 // row width is validated per row
	cr.TrimLeadingSpace = true

	report := &ImportReport{}
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}
		if line == 1 && isHeaderRow(record) {
			continue
		}
		if isBlankRow(record) {
			continue
		}

		in, err := recordToInput(record)
		if err != nil {
			report.Failed++
			report.Errors = append(report.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}
		if _, err := s.ledger.AddEntry(ctx, in); err != nil {
			report.Failed++
			report.Errors = append(report.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}
		report.Imported++
	}

	slog.InfoContext(ctx, "CSV import finished",
		"imported", report.Imported,
		"failed", report.Failed)
	return report, nil
}

// decodeToUTF8 normalizes the import bytes to UTF-8. CSV files saved by
// Japanese Excel usually arrive as Shift-JIS, so anything that is not valid
// UTF-8 is decoded as Shift-JIS. A leading UTF-8 BOM is dropped.
func decodeToUTF8(r io.Reader) (io.Reader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\uFEFF"))
	if !utf8.Valid(data) {
		converted, err := japanese.ShiftJIS.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decoding shift-jis: %w", err)
		}
		data = converted
	}
	return bytes.NewReader(data), nil
}

func recordToInput(record []string) (EntryInput, error) {
	switch len(record) {
	case 4:
		return EntryInput{
			Date:     record[0],
			Category: record[1],
			Subject:  record[2],
			Amount:   record[3],
		}, nil
	case 5:
		// Exported format carries the old id first; drop it.
		return EntryInput{
			Date:     record[1],
			Category: record[2],
			Subject:  record[3],
			Amount:   record[4],
		}, nil
	default:
		return EntryInput{}, fmt.Errorf("expected 4 or 5 columns, got %d", len(record))
	}
}

func isHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "id" || first == "date"
}

func isBlankRow(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
