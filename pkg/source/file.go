package source

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/supporttools/self-healing-trigger/pkg/types"
)

// File reads a YAML or JSON document listing per-system counts. The document
// is either a bare list of records or a mapping with a "systems" list:
//
//	systems:
//	  - system: Linux
//	    errors: 150
//	    warnings: 200
//
// The document is re-read on every Systems call so each pass sees fresh data.
type File struct {
	path string

	mu   sync.RWMutex
	snap *snapshot
}

// NewFile creates a file source.
func NewFile(cfg types.SourceConfig) (*File, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: file source requires a path", types.ErrConfiguration)
	}
	return &File{path: cfg.Path}, nil
}

// Systems loads the document and returns systems in document order.
func (f *File) Systems(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSourceUnavailable, err)
	}
	records, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSourceUnavailable, f.path, err)
	}
	snap, err := newSnapshot(records)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrSourceUnavailable, f.path, err)
	}

	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()

	return append([]string(nil), snap.order...), nil
}

// Stats returns the counts loaded by the last Systems call.
func (f *File) Stats(ctx context.Context, systemID string) (types.SystemStats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.snap.lookup(systemID)
}

// decodeRecords accepts either a list or a {systems: [...]} mapping.
func decodeRecords(data []byte) ([]record, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}

	root := node.Content[0]
	var records []record
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&records); err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
	case yaml.MappingNode:
		var doc struct {
			Systems []record `yaml:"systems"`
		}
		if err := root.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode records: %w", err)
		}
		records = doc.Systems
	default:
		return nil, fmt.Errorf("expected a list or a mapping with systems")
	}
	return records, nil
}
