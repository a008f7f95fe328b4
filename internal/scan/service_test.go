package scan

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aftab97/qr-inventory-scanner/internal/capture"
	"github.com/aftab97/qr-inventory-scanner/internal/decode"
	"github.com/aftab97/qr-inventory-scanner/internal/inventory"
)

// stubPublisher records published payloads and signals each delivery.
type stubPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
	done     chan struct{}
}

func newStubPublisher() *stubPublisher {
	return &stubPublisher{done: make(chan struct{}, 16)}
}

func (p *stubPublisher) PublishScan(payload []byte) error {
	p.mu.Lock()
	p.payloads = append(p.payloads, payload)
	p.mu.Unlock()
	p.done <- struct{}{}
	return nil
}

func (p *stubPublisher) events(t *testing.T) []ScanEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ScanEvent, 0, len(p.payloads))
	for _, payload := range p.payloads {
		var event ScanEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		out = append(out, event)
	}
	return out
}

func (p *stubPublisher) waitOne(t *testing.T) {
	t.Helper()
	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a published scan event")
	}
}

// stubDirectory serves a fixed item set and records reported scans.
type stubDirectory struct {
	mu      sync.Mutex
	items   map[string]*inventory.Item
	records []inventory.ScanRecord
}

func (d *stubDirectory) LookupItem(ctx context.Context, code string) (*inventory.Item, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if item, ok := d.items[code]; ok {
		return item, nil
	}
	return nil, inventory.ErrItemNotFound
}

func (d *stubDirectory) RecordScan(ctx context.Context, record inventory.ScanRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records = append(d.records, record)
	return nil
}

func (d *stubDirectory) recorded() []inventory.ScanRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]inventory.ScanRecord, len(d.records))
	copy(out, d.records)
	return out
}

func runService(t *testing.T, s *Service, ctx context.Context) chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()
	return errCh
}

func TestServicePublishesResolvedScanEvent(t *testing.T) {
	src := capture.NewSyntheticSource(queuedFrames(20)...)
	runner := decode.NewRunner(&alwaysDecoder{payload: "ITEM-42"}, nil)
	pub := newStubPublisher()
	dir := &stubDirectory{items: map[string]*inventory.Item{
		"ITEM-42": {Code: "ITEM-42", Name: "M6 hex bolts", Location: "aisle-3", Quantity: 250},
	}}

	svc, err := NewService(src, runner, pub, dir, ServiceConfig{
		StationID:  "shelf-a1",
		Interval:   5 * time.Millisecond,
		RearmDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runService(t, svc, ctx)

	pub.waitOne(t)
	cancel()
	require.NoError(t, <-errCh)
	require.NoError(t, svc.Shutdown(context.Background()))

	events := pub.events(t)
	require.NotEmpty(t, events)
	event := events[0]
	assert.Equal(t, "shelf-a1", event.StationID)
	assert.Equal(t, "ITEM-42", event.Code)
	assert.True(t, event.Found)
	require.NotNil(t, event.Item)
	assert.Equal(t, "M6 hex bolts", event.Item.Name)
	assert.NotEmpty(t, event.SessionID)
	assert.False(t, event.ScannedAt.IsZero())

	records := dir.recorded()
	require.NotEmpty(t, records)
	assert.Equal(t, "ITEM-42", records[0].Code)
	assert.Equal(t, "shelf-a1", records[0].StationID)
}

func TestServiceUnknownCodeStillPublishes(t *testing.T) {
	src := capture.NewSyntheticSource(queuedFrames(20)...)
	runner := decode.NewRunner(&alwaysDecoder{payload: "MYSTERY-9"}, nil)
	pub := newStubPublisher()
	dir := &stubDirectory{items: map[string]*inventory.Item{}}

	svc, err := NewService(src, runner, pub, dir, ServiceConfig{
		StationID:  "shelf-a1",
		Interval:   5 * time.Millisecond,
		RearmDelay: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runService(t, svc, ctx)

	pub.waitOne(t)
	cancel()
	require.NoError(t, <-errCh)

	event := pub.events(t)[0]
	assert.Equal(t, "MYSTERY-9", event.Code)
	assert.False(t, event.Found)
	assert.Nil(t, event.Item)
}

func TestServiceRearmsAfterResult(t *testing.T) {
	src := capture.NewSyntheticSource(queuedFrames(40)...)
	runner := decode.NewRunner(&alwaysDecoder{payload: "ITEM-1"}, nil)
	pub := newStubPublisher()

	svc, err := NewService(src, runner, pub, nil, ServiceConfig{
		StationID:  "shelf-a1",
		Interval:   5 * time.Millisecond,
		RearmDelay: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runService(t, svc, ctx)

	pub.waitOne(t)
	pub.waitOne(t)
	cancel()
	require.NoError(t, <-errCh)

	events := pub.events(t)
	require.GreaterOrEqual(t, len(events), 2, "a new session arms after each result")
	assert.NotEqual(t, events[0].SessionID, events[1].SessionID,
		"each scan cycle runs in a fresh session")
	assert.GreaterOrEqual(t, src.OpenCount(), 2, "source reopened for the second session")

	stats := svc.Stats()
	assert.GreaterOrEqual(t, stats.ScansCompleted, uint64(2))
	assert.Equal(t, "ITEM-1", stats.LastCode)
}

func TestServiceShutdownWhileArmed(t *testing.T) {
	src := capture.NewSyntheticSource()
	runner := decode.NewRunner(neverDecoder{}, nil)

	svc, err := NewService(src, runner, nil, nil, ServiceConfig{
		StationID: "shelf-a1",
		Interval:  5 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := runService(t, svc, ctx)

	// Let the first session arm.
	require.Eventually(t, func() bool {
		return svc.Stats().Session.State == StateArmed.String()
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
	require.NoError(t, svc.Shutdown(context.Background()))
	require.NoError(t, svc.Shutdown(context.Background()), "shutdown is idempotent")

	assert.False(t, svc.Stats().Running)
	assert.False(t, src.Stats().IsOpen, "camera released on shutdown")
}

func TestServiceTorchForwardsToArmedSession(t *testing.T) {
	src := capture.NewSyntheticSource().WithTorch()
	runner := decode.NewRunner(neverDecoder{}, nil)

	svc, err := NewService(src, runner, nil, nil, ServiceConfig{
		StationID: "shelf-a1",
		Interval:  5 * time.Millisecond,
	})
	require.NoError(t, err)

	require.Error(t, svc.SetTorch(true), "no session before Run")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := runService(t, svc, ctx)

	require.Eventually(t, func() bool {
		return svc.Stats().Session.State == StateArmed.String()
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, svc.SetTorch(true))
	assert.True(t, src.TorchOn())

	cancel()
	require.NoError(t, <-errCh)
}

func TestNewServiceValidation(t *testing.T) {
	src := capture.NewSyntheticSource()
	runner := decode.NewRunner(neverDecoder{}, nil)

	_, err := NewService(nil, runner, nil, nil, ServiceConfig{StationID: "a"})
	require.Error(t, err)

	_, err = NewService(src, nil, nil, nil, ServiceConfig{StationID: "a"})
	require.Error(t, err)

	_, err = NewService(src, runner, nil, nil, ServiceConfig{})
	require.Error(t, err)
}
