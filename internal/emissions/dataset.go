package emissions

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"greenbite/internal/apperr"
	"greenbite/internal/logging"
)

// Column names the reference dataset must provide.
const (
	ColumnFoodItem    = "food_item"
	ColumnCO2Emission = "co2_emission"
)

// ErrSchema is returned when the dataset header lacks a required column.
var ErrSchema = errors.New("reference dataset schema mismatch")

// LoadReference reads the tier A dataset from a CSV file. It never fails:
// a missing or malformed file yields an empty table, and the returned
// Recovered carries the reason so the caller can log it.
func LoadReference(path string, log *logging.Logger) apperr.Recovered[*Table] {
	if strings.TrimSpace(path) == "" {
		return apperr.Fallback(NewTable(nil), errors.New("reference dataset path not set"))
	}
	f, err := os.Open(path)
	if err != nil {
		return apperr.Fallback(NewTable(nil), fmt.Errorf("open reference dataset: %w", err))
	}
	defer f.Close()

	table, skipped, err := ReadReference(f)
	if err != nil {
		return apperr.Fallback(NewTable(nil), fmt.Errorf("read reference dataset %s: %w", path, err))
	}
	if skipped > 0 {
		log.Printf("skipped %d malformed rows in %s", skipped, path)
	}
	log.Printf("loaded %d reference entries from %s", table.Len(), path)
	return apperr.Ok(table)
}

// ReadReference parses a reference dataset. Rows with an empty name or a
// value that is not a non-negative number are skipped; their count is
// returned alongside the table.
func ReadReference(r io.Reader) (*Table, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, 0, fmt.Errorf("%w: empty file", ErrSchema)
	}
	if err != nil {
		return nil, 0, err
	}

	nameCol, valueCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case ColumnFoodItem:
			nameCol = i
		case ColumnCO2Emission:
			valueCol = i
		}
	}
	if nameCol < 0 || valueCol < 0 {
		return nil, 0, fmt.Errorf("%w: need columns %q and %q, got %v", ErrSchema, ColumnFoodItem, ColumnCO2Emission, header)
	}

	var entries []Entry
	skipped := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		if nameCol >= len(rec) || valueCol >= len(rec) {
			skipped++
			continue
		}
		name := strings.TrimSpace(rec[nameCol])
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[valueCol]), 64)
		if name == "" || err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			skipped++
			continue
		}
		entries = append(entries, Entry{Name: name, CO2PerServing: v})
	}
	return NewTable(entries), skipped, nil
}
