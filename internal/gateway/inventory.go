package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"github.com/yourorg/stockcast/internal/dataset"
	"github.com/yourorg/stockcast/internal/domain"
)

var uploadPaths = map[domain.DatasetKind]string{
	domain.DatasetInventory: "/api/inventory/upload",
	domain.DatasetSales:     "/api/sales/upload",
}

// UploadInventory validates and uploads an inventory CSV
func (c *Client) UploadInventory(ctx context.Context, filename string, r io.Reader) error {
	return c.upload(ctx, domain.DatasetInventory, filename, r)
}

// UploadSales validates and uploads a sales CSV
func (c *Client) UploadSales(ctx context.Context, filename string, r io.Reader) error {
	return c.upload(ctx, domain.DatasetSales, filename, r)
}

func (c *Client) upload(ctx context.Context, kind domain.DatasetKind, filename string, r io.Reader) error {
	op := "upload_" + string(kind)
	path, ok := uploadPaths[kind]
	if !ok {
		return fmt.Errorf("unknown dataset kind %q", kind)
	}
	if err := dataset.CheckExtension(filename, c.uploadExtensions); err != nil {
		return err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%s: failed to read %s: %w", op, filename, err)
	}
	rows, err := dataset.Validate(kind, data)
	if err != nil {
		return err
	}

	c.logger.Debug("uploading dataset",
		slog.String("kind", string(kind)),
		slog.String("file", filename),
		slog.Int("rows", rows),
	)

	_, err = c.postForm(ctx, op, path, nil, &formFile{
		field:    "file",
		filename: filepath.Base(filename),
		data:     data,
	})
	var herr *HTTPError
	if errors.As(err, &herr) {
		return &UploadError{Kind: kind, Err: herr}
	}
	return err
}

// AddInventoryItem creates an inventory row
func (c *Client) AddInventoryItem(ctx context.Context, item domain.InventoryItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	_, err := c.postForm(ctx, "inventory_add", "/inventory/add", []formField{
		{name: "item_id", value: item.ItemID},
		{name: "product", value: item.Product},
		{name: "stock", value: strconv.Itoa(item.Stock)},
	}, nil)
	return err
}

// UpdateInventoryItem sends only the fields present in patch. Omitted fields are left unchanged by the backend.
func (c *Client) UpdateInventoryItem(ctx context.Context, itemID string, patch domain.InventoryPatch) error {
	if itemID == "" {
		return &domain.ValidationError{Field: "item_id", Reason: "is required"}
	}
	if patch.Empty() {
		return &domain.ValidationError{Field: "patch", Reason: "has no fields to update"}
	}
	if err := patch.Validate(); err != nil {
		return err
	}

	var fields []formField
	if patch.Product != nil {
		fields = append(fields, formField{name: "product", value: *patch.Product})
	}
	if patch.Stock != nil {
		fields = append(fields, formField{name: "stock", value: strconv.Itoa(*patch.Stock)})
	}
	_, err := c.postForm(ctx, "inventory_update", "/inventory/update/"+url.PathEscape(itemID), fields, nil)
	return err
}

// DeleteInventoryItem removes an inventory row. The backend exposes this as a GET with side effects,
// so it must not be retried blindly.
func (c *Client) DeleteInventoryItem(ctx context.Context, itemID string) error {
	if itemID == "" {
		return &domain.ValidationError{Field: "item_id", Reason: "is required"}
	}
	_, err := c.makeRequest(ctx, "inventory_delete", http.MethodGet, "/inventory/delete/"+url.PathEscape(itemID), nil, nil)
	return err
}
