package scan

import (
	"context"

	"github.com/aftab97/qr-inventory-scanner/internal/inventory"
)

// ScanPublisher publishes serialized scan events to the message broker
type ScanPublisher interface {
	// PublishScan publishes one scan event
	PublishScan(payload []byte) error
}

// ItemDirectory resolves scanned codes against the inventory backend
type ItemDirectory interface {
	// LookupItem fetches the item for a code; inventory.ErrItemNotFound
	// when the backend has no record
	LookupItem(ctx context.Context, code string) (*inventory.Item, error)
	// RecordScan reports a completed scan
	RecordScan(ctx context.Context, record inventory.ScanRecord) error
}
