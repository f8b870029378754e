package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tienda-orders/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads product exports with stock levels and upserts them by SKU.
//
// Expected headers: sku, name, description, unitPrice, stock, active. Column
// order is free; description and active are optional.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
}

func NewCSVImporter(r io.Reader, repo ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	csvr.TrimLeadingSpace = true
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
	}
}

var requiredHeaders = []string{"sku", "name", "unitPrice", "stock"}

// Run parses every row and upserts it. It stops at the first invalid row and
// reports how many products were written before it.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, h := range requiredHeaders {
		if _, ok := index[h]; !ok {
			return 0, fmt.Errorf("missing required column %q", h)
		}
	}

	imported := 0
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		if blank(record) {
			continue
		}

		p, err := parseRow(record, index)
		if err != nil {
			line, _ := i.reader.FieldPos(0)
			return imported, fmt.Errorf("line %d: %w", line, err)
		}
		if _, err := i.productRepo.Upsert(ctx, p); err != nil {
			return imported, fmt.Errorf("upsert product %q: %w", p.SKU, err)
		}
		imported++
	}

	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.TrimSpace(h)] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (domain.Product, error) {
	p := domain.Product{
		SKU:         pick(record, index, "sku"),
		Name:        pick(record, index, "name"),
		Description: pick(record, index, "description"),
		Active:      true,
	}
	if p.SKU == "" || p.Name == "" {
		return p, fmt.Errorf("%w: sku and name are required", domain.ErrInvalidInput)
	}

	price, err := strconv.ParseInt(pick(record, index, "unitPrice"), 10, 64)
	if err != nil || price <= 0 {
		return p, fmt.Errorf("%w: unitPrice for %q must be a positive integer", domain.ErrInvalidInput, p.SKU)
	}
	p.UnitPrice = price

	stock, err := strconv.Atoi(pick(record, index, "stock"))
	if err != nil || stock < 0 {
		return p, fmt.Errorf("%w: stock for %q must be a non-negative integer", domain.ErrInvalidInput, p.SKU)
	}
	p.Stock = stock

	if raw := pick(record, index, "active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return p, fmt.Errorf("%w: active for %q: %q", domain.ErrInvalidInput, p.SKU, raw)
		}
		p.Active = active
	}
	return p, nil
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
