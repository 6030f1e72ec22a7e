package dataset

import (
	"errors"
	"strings"
	"testing"

	"github.com/yourorg/stockcast/internal/domain"
)

func TestParseInventory(t *testing.T) {
	data := "item_id,product,stock\nA123,Widget,10\nB456, Gadget ,0\n"
	items, err := ParseInventory(strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[1].Product != "Gadget" || items[1].Stock != 0 {
		t.Fatalf("unexpected item %+v", items[1])
	}
}

func TestParseInventoryWithStoreColumn(t *testing.T) {
	data := "\ufeffItem_ID,Product,Stock,Store_ID\nA123,Widget,10,S1\n"
	items, err := ParseInventory(strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if items[0].StoreID != "S1" {
		t.Fatalf("expected store id S1, got %q", items[0].StoreID)
	}
}

func TestParseInventoryRejectsNegativeStock(t *testing.T) {
	data := "item_id,product,stock\nA123,Widget,10\nB456,Gadget,-4\n"
	_, err := ParseInventory(strings.NewReader(data))
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Row != 3 || verr.Field != "stock" {
		t.Fatalf("expected row 3 stock error, got %+v", verr)
	}
}

func TestParseInventoryHeaderMismatch(t *testing.T) {
	if _, err := ParseInventory(strings.NewReader("sku,name,qty\nA,B,1\n")); err == nil {
		t.Fatalf("expected header mismatch error")
	}
}

func TestParseInventoryEmpty(t *testing.T) {
	_, err := ParseInventory(strings.NewReader("item_id,product,stock\n"))
	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestParseInventoryRaggedRow(t *testing.T) {
	if _, err := ParseInventory(strings.NewReader("item_id,product,stock\nA,B\n")); err == nil {
		t.Fatalf("expected column count error")
	}
}

func TestParseSales(t *testing.T) {
	data := "date,item_id,product,quantity\n2024-03-01,A123,Widget,3\n"
	sales, err := ParseSales(strings.NewReader(data))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if sales[0].Quantity != 3 || sales[0].Date.Day() != 1 {
		t.Fatalf("unexpected record %+v", sales[0])
	}
}

func TestParseSalesRejectsBadRows(t *testing.T) {
	tests := []struct {
		name  string
		row   string
		field string
	}{
		{"zero quantity", "2024-03-01,A123,Widget,0", "quantity"},
		{"negative quantity", "2024-03-01,A123,Widget,-2", "quantity"},
		{"bad date", "03/01/2024,A123,Widget,2", "date"},
		{"non-integer", "2024-03-01,A123,Widget,two", "quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSales(strings.NewReader("date,item_id,product,quantity\n" + tt.row + "\n"))
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field || verr.Row != 2 {
				t.Fatalf("expected row 2 %s error, got %+v", tt.field, verr)
			}
		})
	}
}

func TestValidateDispatch(t *testing.T) {
	n, err := Validate(domain.DatasetInventory, []byte("item_id,product,stock\nA,B,1\nC,D,2\n"))
	if err != nil || n != 2 {
		t.Fatalf("expected 2 rows, got %d (%v)", n, err)
	}
	if _, err := Validate(domain.DatasetKind("returns"), nil); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

func TestCheckExtension(t *testing.T) {
	if err := CheckExtension("stock.CSV", []string{".csv"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := CheckExtension("stock.xlsx", []string{".csv"}); err == nil {
		t.Fatalf("expected xlsx to be rejected")
	}
}
