// Package store defines the document store port the pricing subsystem works
// against. The hosted store is a plain key-document database: equality
// queries, merge-patch updates, no cross-document transactions.
package store

import (
	"context"
	"encoding/json"
	"errors"
)

// Collection names the document collections this service touches.
type Collection string

const (
	CollectionPurchaseOrders   Collection = "PurchaseOrder"
	CollectionInventoryBatches Collection = "InventoryBatch"
)

// ErrNotFound is returned by GetByID when no document has the given id.
var ErrNotFound = errors.New("document not found")

// Store is the minimal document store contract. FieldPath in QueryByField is
// a dot path into the document ("purchaseOrderDetails.id"); only equality
// filters are supported. UpdateByID merges the given fields into the stored
// document without replacing it.
type Store interface {
	GetByID(ctx context.Context, collection Collection, id string) (json.RawMessage, error)
	QueryByField(ctx context.Context, collection Collection, fieldPath, value string) ([]json.RawMessage, error)
	UpdateByID(ctx context.Context, collection Collection, id string, fields map[string]any) error
	Put(ctx context.Context, collection Collection, id string, doc any) error
}
