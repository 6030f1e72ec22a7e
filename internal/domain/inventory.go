package domain

import (
	"fmt"
	"strings"
	"time"
)

// DatasetKind names a bulk upload dataset
type DatasetKind string

const (
	DatasetInventory DatasetKind = "inventory"
	DatasetSales     DatasetKind = "sales"
)

// SalesDateLayout is the date format expected in sales uploads
const SalesDateLayout = "2006-01-02"

// InventoryItem is a stock-keeping unit's quantity at a store
type InventoryItem struct {
	ItemID  string `json:"item_id"`
	Product string `json:"product"`
	Stock   int    `json:"stock"`
	StoreID string `json:"store_id,omitempty"`
}

// Validate checks the item before it is sent to the backend
func (i InventoryItem) Validate() error {
	if strings.TrimSpace(i.ItemID) == "" {
		return &ValidationError{Field: "item_id", Reason: "is required"}
	}
	if strings.TrimSpace(i.Product) == "" {
		return &ValidationError{Field: "product", Reason: "is required"}
	}
	if i.Stock < 0 {
		return &ValidationError{Field: "stock", Reason: fmt.Sprintf("cannot be negative, got %d", i.Stock)}
	}
	return nil
}

// InventoryPatch is a partial inventory update. Nil fields are left unchanged by the backend.
type InventoryPatch struct {
	Product *string
	Stock   *int
}

// Empty reports whether the patch carries no fields
func (p InventoryPatch) Empty() bool {
	return p.Product == nil && p.Stock == nil
}

// Validate checks only the fields present in the patch
func (p InventoryPatch) Validate() error {
	if p.Product != nil && strings.TrimSpace(*p.Product) == "" {
		return &ValidationError{Field: "product", Reason: "cannot be blank"}
	}
	if p.Stock != nil && *p.Stock < 0 {
		return &ValidationError{Field: "stock", Reason: fmt.Sprintf("cannot be negative, got %d", *p.Stock)}
	}
	return nil
}

// SalesRecord is one observed sale
type SalesRecord struct {
	Date     time.Time `json:"date"`
	ItemID   string    `json:"item_id"`
	Product  string    `json:"product"`
	Quantity int       `json:"quantity"`
	StoreID  string    `json:"store_id,omitempty"`
}

// Validate checks the record before it is sent to the backend
func (s SalesRecord) Validate() error {
	if s.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "is required"}
	}
	if strings.TrimSpace(s.ItemID) == "" {
		return &ValidationError{Field: "item_id", Reason: "is required"}
	}
	if s.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be positive, got %d", s.Quantity)}
	}
	return nil
}
