package catalog

import (
	"fmt"
	"sync/atomic"

	"github.com/eyevinn-osaas/strom-sub002/internal/rerr"
)

// BlockCatalog is the immutable, process-wide registry of block
// definitions (spec §2.3). Like ElementCatalog, a reload never mutates an
// existing instance; BlockHolder swaps in a freshly-built one.
type BlockCatalog struct {
	byID map[string]*BlockDefinition
}

// NewBlockCatalog builds an immutable catalog from a set of definitions.
func NewBlockCatalog(defs []*BlockDefinition) (*BlockCatalog, error) {
	byID := make(map[string]*BlockDefinition, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("catalog: block definition with empty id")
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate block definition id %q", d.ID)
		}
		byID[d.ID] = d
	}
	return &BlockCatalog{byID: byID}, nil
}

// Lookup returns the block definition for a block_definition_id.
func (c *BlockCatalog) Lookup(definitionID string) (*BlockDefinition, error) {
	d, ok := c.byID[definitionID]
	if !ok {
		return nil, rerr.New(rerr.UnknownBlock, "unknown block definition %q", definitionID)
	}
	return d, nil
}

// IDs returns all registered block definition ids.
func (c *BlockCatalog) IDs() []string {
	out := make([]string, 0, len(c.byID))
	for id := range c.byID {
		out = append(out, id)
	}
	return out
}

// BlockHolder is a lock-free holder for the current BlockCatalog snapshot.
type BlockHolder struct {
	ptr atomic.Pointer[BlockCatalog]
}

func NewBlockHolder(initial *BlockCatalog) *BlockHolder {
	h := &BlockHolder{}
	h.ptr.Store(initial)
	return h
}

func (h *BlockHolder) Current() *BlockCatalog { return h.ptr.Load() }

func (h *BlockHolder) Swap(next *BlockCatalog) *BlockCatalog { return h.ptr.Swap(next) }
