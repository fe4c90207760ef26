package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lessonshop/internal/domain"
)

type LessonWriter interface {
	Upsert(ctx context.Context, lesson domain.Lesson) (*domain.Lesson, error)
}

// CSVImporter reads lesson CSV exports and inserts/updates lessons.
type CSVImporter struct {
	reader     *csv.Reader
	lessonRepo LessonWriter
}

func NewCSVImporter(r io.Reader, repo LessonWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:     csvr,
		lessonRepo: repo,
	}
}

var requiredHeaders = []string{"subject", "location", "price", "spaces"}

type csvRow struct {
	Line     int
	ID       string
	Subject  string
	Location string
	Price    string
	Spaces   string
	Icon     string
}

// Run parses CSV rows and upserts one lesson per row. Blank rows are skipped.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			return 0, fmt.Errorf("missing column %q", h)
		}
	}

	var imported int
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}

		line, _ := i.reader.FieldPos(0)
		row := parseRow(record, index, line)
		if row == nil {
			continue
		}
		if err := i.save(ctx, row); err != nil {
			return imported, err
		}
		imported++
	}

	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	if row.Subject == "" || row.Location == "" {
		return fmt.Errorf("line %d: subject and location required", row.Line)
	}
	if row.ID != "" {
		if _, err := uuid.Parse(row.ID); err != nil {
			return fmt.Errorf("line %d: invalid id %q", row.Line, row.ID)
		}
	}
	price, err := decimal.NewFromString(row.Price)
	if err != nil || price.IsNegative() {
		return fmt.Errorf("line %d: invalid price %q", row.Line, row.Price)
	}
	spaces, err := strconv.Atoi(row.Spaces)
	if err != nil || spaces < 0 {
		return fmt.Errorf("line %d: invalid spaces %q", row.Line, row.Spaces)
	}

	l := domain.Lesson{
		ID:       row.ID,
		Subject:  row.Subject,
		Location: row.Location,
		Price:    price,
		Spaces:   spaces,
		Icon:     row.Icon,
	}
	if _, err := i.lessonRepo.Upsert(ctx, l); err != nil {
		return fmt.Errorf("upsert lesson %s/%s: %w", row.Subject, row.Location, err)
	}
	return nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int, line int) *csvRow {
	row := &csvRow{
		Line:     line,
		ID:       pick(record, index, "id"),
		Subject:  pick(record, index, "subject"),
		Location: pick(record, index, "location"),
		Price:    pick(record, index, "price"),
		Spaces:   pick(record, index, "spaces"),
		Icon:     pick(record, index, "icon"),
	}
	if row.ID == "" && row.Subject == "" && row.Location == "" && row.Price == "" && row.Spaces == "" && row.Icon == "" {
		return nil
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
