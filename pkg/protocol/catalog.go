package protocol

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// ErrEmptyCatalog is returned when a configured catalog selects no streams.
var ErrEmptyCatalog = errors.New("configured catalog selects no streams")

// ConfiguredStream is a stream selected for a read.
type ConfiguredStream struct {
	Stream              Stream   `json:"stream"`
	SyncMode            SyncMode `json:"sync_mode"`
	DestinationSyncMode string   `json:"destination_sync_mode,omitempty"`
}

// ConfiguredCatalog is the host's selection of streams for a read.
type ConfiguredCatalog struct {
	Streams []ConfiguredStream `json:"streams"`
}

// Selected reports whether the stream called name is part of the read.
func (c *ConfiguredCatalog) Selected(name string) bool {
	if c == nil {
		return false
	}
	for _, s := range c.Streams {
		if s.Stream.Name == name {
			return true
		}
	}
	return false
}

// SelectAll configures every stream of cat with full refresh.
func SelectAll(cat *Catalog) *ConfiguredCatalog {
	cc := &ConfiguredCatalog{Streams: make([]ConfiguredStream, 0, len(cat.Streams))}
	for _, s := range cat.Streams {
		cc.Streams = append(cc.Streams, ConfiguredStream{
			Stream:   s,
			SyncMode: SyncModeFullRefresh,
		})
	}
	return cc
}

// ParseConfiguredCatalog decodes a configured catalog document.
func ParseConfiguredCatalog(data []byte) (*ConfiguredCatalog, error) {
	var cc ConfiguredCatalog
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, fmt.Errorf("decode configured catalog: %w", err)
	}
	if len(cc.Streams) == 0 {
		return nil, ErrEmptyCatalog
	}
	for i, s := range cc.Streams {
		if s.Stream.Name == "" {
			return nil, fmt.Errorf("configured catalog stream %d has no name", i)
		}
	}
	return &cc, nil
}

// ReadConfiguredCatalog loads the catalog file passed to a read.
func ReadConfiguredCatalog(path string) (*ConfiguredCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read configured catalog: %w", err)
	}
	return ParseConfiguredCatalog(data)
}
