package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/stockcast/internal/domain"
)

var (
	inventoryHeader = []string{"item_id", "product", "stock"}
	salesHeader     = []string{"date", "item_id", "product", "quantity"}
)

// ErrEmptyDataset is returned when a file has a header but no rows
var ErrEmptyDataset = errors.New("dataset must have a header and at least one data row")

// CheckExtension rejects file names whose extension is not in allowed (case-insensitive)
func CheckExtension(name string, allowed []string) error {
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return nil
		}
	}
	return fmt.Errorf("file %q: extension %q not allowed, expected one of %v", name, ext, allowed)
}

// Validate parses data as the given dataset kind and returns the number of data rows
func Validate(kind domain.DatasetKind, data []byte) (int, error) {
	switch kind {
	case domain.DatasetInventory:
		items, err := ParseInventory(bytes.NewReader(data))
		return len(items), err
	case domain.DatasetSales:
		records, err := ParseSales(bytes.NewReader(data))
		return len(records), err
	default:
		return 0, fmt.Errorf("unknown dataset kind %q", kind)
	}
}

// ParseInventory reads item_id,product,stock[,store_id] rows
func ParseInventory(r io.Reader) ([]domain.InventoryItem, error) {
	records, withStore, err := readAll(r, inventoryHeader)
	if err != nil {
		return nil, fmt.Errorf("inventory CSV: %w", err)
	}

	items := make([]domain.InventoryItem, 0, len(records))
	for i, record := range records {
		row := i + 2
		stock, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil {
			return nil, &domain.ValidationError{Row: row, Field: "stock", Reason: fmt.Sprintf("is not an integer: %q", record[2])}
		}
		item := domain.InventoryItem{
			ItemID:  strings.TrimSpace(record[0]),
			Product: strings.TrimSpace(record[1]),
			Stock:   stock,
		}
		if withStore {
			item.StoreID = strings.TrimSpace(record[3])
		}
		if err := item.Validate(); err != nil {
			return nil, withRow(err, row)
		}
		items = append(items, item)
	}
	return items, nil
}

// ParseSales reads date,item_id,product,quantity[,store_id] rows
func ParseSales(r io.Reader) ([]domain.SalesRecord, error) {
	records, withStore, err := readAll(r, salesHeader)
	if err != nil {
		return nil, fmt.Errorf("sales CSV: %w", err)
	}

	sales := make([]domain.SalesRecord, 0, len(records))
	for i, record := range records {
		row := i + 2
		date, err := time.Parse(domain.SalesDateLayout, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, &domain.ValidationError{Row: row, Field: "date", Reason: fmt.Sprintf("is not a %s date: %q", domain.SalesDateLayout, record[0])}
		}
		qty, err := strconv.Atoi(strings.TrimSpace(record[3]))
		if err != nil {
			return nil, &domain.ValidationError{Row: row, Field: "quantity", Reason: fmt.Sprintf("is not an integer: %q", record[3])}
		}
		rec := domain.SalesRecord{
			Date:     date,
			ItemID:   strings.TrimSpace(record[1]),
			Product:  strings.TrimSpace(record[2]),
			Quantity: qty,
		}
		if withStore {
			rec.StoreID = strings.TrimSpace(record[4])
		}
		if err := rec.Validate(); err != nil {
			return nil, withRow(err, row)
		}
		sales = append(sales, rec)
	}
	return sales, nil
}

// readAll checks the header and returns the data rows. A trailing store_id column is optional.
func readAll(r io.Reader, expected []string) ([][]string, bool, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, false, err
	}
	if len(records) < 2 {
		return nil, false, ErrEmptyDataset
	}

	header := records[0]
	withStore := len(header) == len(expected)+1 && normalize(header[len(expected)]) == "store_id"
	if !validateHeader(header, expected, withStore) {
		return nil, false, fmt.Errorf("header mismatch. Expected: %v (optionally followed by store_id), Got: %v", expected, header)
	}

	width := len(header)
	rows := records[1:]
	for i, record := range rows {
		if len(record) != width {
			return nil, false, fmt.Errorf("row %d: expected %d columns, got %d", i+2, width, len(record))
		}
	}
	return rows, withStore, nil
}

func validateHeader(header, expected []string, withStore bool) bool {
	want := len(expected)
	if withStore {
		want++
	}
	if len(header) != want {
		return false
	}
	for i, col := range expected {
		if normalize(header[i]) != col {
			return false
		}
	}
	return true
}

func normalize(col string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
}

func withRow(err error, row int) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return &domain.ValidationError{Row: row, Field: verr.Field, Reason: verr.Reason}
	}
	return fmt.Errorf("row %d: %w", row, err)
}
