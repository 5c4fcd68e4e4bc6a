package gateways

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	ifgateways "github.com/halcyonlabs/apkforge/internal/domain/interfaces/gateways"
)

// memoryRecords is the in-memory implementation of the conversion-record
// collaborator, used for development and tests.
type memoryRecords struct {
	mu      sync.Mutex
	records map[string]*ifgateways.ConversionRecord
}

// NewMemoryRecords creates an empty in-memory record store
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewMemoryRecords() *memoryRecords {
	return &memoryRecords{records: make(map[string]*ifgateways.ConversionRecord)}
}

// Create opens a new record in the pending status
func (g *memoryRecords) Create(_ context.Context, metadata map[string]string) (*ifgateways.ConversionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	record := &ifgateways.ConversionRecord{
		ID:     uuid.NewString(),
		Status: "pending",
		Fields: make(map[string]string, len(metadata)),
	}
	for k, v := range metadata {
		record.Fields[k] = v
	}
	g.records[record.ID] = record
	return snapshot(record), nil
}

// Update patches fields on an existing record. The "status" field moves
// the record's status; everything else lands in Fields.
func (g *memoryRecords) Update(_ context.Context, id string, fields map[string]string) (*ifgateways.ConversionRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	record, ok := g.records[id]
	if !ok {
		return nil, fmt.Errorf("unknown conversion record %q", id)
	}
	for k, v := range fields {
		if k == "status" {
			record.Status = v
			continue
		}
		record.Fields[k] = v
	}
	return snapshot(record), nil
}

// List returns copies of every record
func (g *memoryRecords) List() []*ifgateways.ConversionRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*ifgateways.ConversionRecord, 0, len(g.records))
	for _, record := range g.records {
		out = append(out, snapshot(record))
	}
	return out
}

// Get returns a copy of the record, for test assertions
func (g *memoryRecords) Get(id string) (*ifgateways.ConversionRecord, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	record, ok := g.records[id]
	if !ok {
		return nil, false
	}
	return snapshot(record), true
}

func snapshot(record *ifgateways.ConversionRecord) *ifgateways.ConversionRecord {
	out := &ifgateways.ConversionRecord{
		ID:     record.ID,
		Status: record.Status,
		Fields: make(map[string]string, len(record.Fields)),
	}
	for k, v := range record.Fields {
		out.Fields[k] = v
	}
	return out
}
