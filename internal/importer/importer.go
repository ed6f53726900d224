// Package importer loads a storefront catalog from CSV.
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
	"go.uber.org/zap"

	"storefront-orders/internal/domain"
	"storefront-orders/internal/logging"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads catalog rows and inserts or updates products. A row with
// an empty key continues the previous product and only contributes an image.
//
// Columns: id, key, name, description, sku, price, currency, discount_percent,
// stock, image_url. Prices are decimal major units ("12.99").
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
	projectID   string
	logger      *zap.Logger
}

func NewCSVImporter(r io.Reader, repo ProductWriter, projectID string, logger *zap.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
		projectID:   projectID,
		logger:      logging.OrNop(logger).Named("importer"),
	}
}

type csvRow struct {
	line      int
	ID        string
	Key       string
	Name      string
	Desc      string
	SKU       string
	Price     string
	Currency  string
	Discount  string
	Stock     string
	ImageURLs []string
}

// Run parses CSV rows and upserts products grouped by product key.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)

	var (
		current  *csvRow
		imported int
		line     = 1
	)

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		row := parseRow(record, index)
		if row == nil {
			continue
		}
		row.line = line

		if row.Key != "" {
			if current != nil {
				if err := i.save(ctx, current); err != nil {
					return imported, err
				}
				imported++
			}
			current = row
			continue
		}

		if current != nil && len(row.ImageURLs) > 0 {
			current.ImageURLs = append(current.ImageURLs, row.ImageURLs...)
		}
	}

	if current != nil {
		if err := i.save(ctx, current); err != nil {
			return imported, err
		}
		imported++
	}

	i.logger.Info("catalog imported", zap.String("project_id", i.projectID), zap.Int("products", imported))
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	p, err := row.product(i.projectID)
	if err != nil {
		return fmt.Errorf("line %d: %w", row.line, err)
	}
	if _, err := i.productRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", row.Key, err)
	}
	return nil
}

func (row *csvRow) product(projectID string) (domain.Product, error) {
	if row.Name == "" || row.SKU == "" || row.Price == "" || row.Currency == "" {
		return domain.Product{}, fmt.Errorf("product %q: name, sku, price and currency are required", row.Key)
	}
	if row.ID != "" {
		if _, err := uuid.Parse(row.ID); err != nil {
			return domain.Product{}, fmt.Errorf("product %q: invalid id %q", row.Key, row.ID)
		}
	}

	price, err := decimal.NewFromString(row.Price)
	if err != nil || price.IsNegative() {
		return domain.Product{}, fmt.Errorf("product %q: invalid price %q", row.Key, row.Price)
	}
	cents := price.Shift(2).Round(0).IntPart()

	discount, err := intField(row.Discount)
	if err != nil || discount < 0 || discount > 100 {
		return domain.Product{}, fmt.Errorf("product %q: discount_percent must be 0..100", row.Key)
	}
	stock, err := intField(row.Stock)
	if err != nil || stock < 0 {
		return domain.Product{}, fmt.Errorf("product %q: stock must be a non-negative integer", row.Key)
	}

	attrs := map[string]interface{}{}
	if len(row.ImageURLs) > 0 {
		attrs["images"] = row.ImageURLs
	}
	return domain.Product{
		ID:              row.ID,
		ProjectID:       projectID,
		Key:             row.Key,
		SKU:             row.SKU,
		Name:            row.Name,
		Description:     row.Desc,
		ListPriceCents:  cents,
		DiscountPercent: discount,
		Stock:           stock,
		Currency:        strings.ToUpper(row.Currency),
		Attributes:      attrs,
	}, nil
}

func intField(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	key := pick(record, index, "key")
	imageURL := pick(record, index, "image_url")
	if key == "" && imageURL == "" {
		return nil
	}

	row := &csvRow{
		ID:       pick(record, index, "id"),
		Key:      key,
		Name:     pick(record, index, "name"),
		Desc:     pick(record, index, "description"),
		SKU:      pick(record, index, "sku"),
		Price:    pick(record, index, "price"),
		Currency: pick(record, index, "currency"),
		Discount: pick(record, index, "discount_percent"),
		Stock:    pick(record, index, "stock"),
	}
	if imageURL != "" {
		row.ImageURLs = []string{imageURL}
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
