package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"lending-workers/internal/models"
)

// ImportSummary reports what one import run did.
type ImportSummary struct {
	Imported    int      `json:"imported"`
	Deactivated int64    `json:"deactivated"`
	Skipped     []string `json:"skipped,omitempty"`
}

// Importer loads a JSON product file into the catalog. Products missing from
// the file are deactivated, never deleted, so the file is the single source
// of truth for the active set.
type Importer struct {
	store *Store
}

func NewImporter(store *Store) *Importer {
	return &Importer{store: store}
}

// ImportFile reads the product file and reconciles the catalog against it.
// Invalid records are skipped and reported; they never abort the run.
func (i *Importer) ImportFile(ctx context.Context, path string) (*ImportSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read product file: %w", err)
	}
	return i.Import(ctx, data)
}

func (i *Importer) Import(ctx context.Context, data []byte) (*ImportSummary, error) {
	products, err := ParseProducts(data)
	if err != nil {
		return nil, err
	}

	summary := &ImportSummary{}
	var keepIDs []string
	for _, p := range products {
		if err := i.store.Upsert(ctx, p); err != nil {
			summary.Skipped = append(summary.Skipped, fmt.Sprintf("%s: %v", p.ID, err))
			continue
		}
		summary.Imported++
		if p.Active {
			keepIDs = append(keepIDs, p.ID)
		}
	}

	deactivated, err := i.store.DeactivateMissing(ctx, keepIDs)
	if err != nil {
		return nil, err
	}
	summary.Deactivated = deactivated

	i.store.InvalidateCache(ctx)
	return summary, nil
}

// ParseProducts decodes a product file. Records default to active unless the
// file says otherwise, so omitting the field does not silently disable a
// product.
func ParseProducts(data []byte) ([]*models.LenderProduct, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("product file is not a JSON array: %w", err)
	}

	products := make([]*models.LenderProduct, 0, len(raw))
	for idx, entry := range raw {
		p := &models.LenderProduct{Active: true}
		if err := json.Unmarshal(entry, p); err != nil {
			return nil, fmt.Errorf("product entry %d: %w", idx, err)
		}
		products = append(products, p)
	}
	return products, nil
}
