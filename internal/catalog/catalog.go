// Package catalog provides the static list of recommendable content.
package catalog

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nhle/smart-onboard/internal/model"
)

//go:embed content.yaml
var defaultContent []byte

// Catalog is an immutable, ordered set of content items.
type Catalog struct {
	items []model.ContentItem
	byID  map[string]int
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := parse(defaultContent)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded content is invalid: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	c, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	return c, nil
}

func parse(data []byte) (*Catalog, error) {
	var items []model.ContentItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, err
	}

	c := &Catalog{items: items, byID: make(map[string]int, len(items))}
	for i, item := range items {
		if item.ID == "" {
			return nil, fmt.Errorf("item %d has no id", i)
		}
		if _, dup := c.byID[item.ID]; dup {
			return nil, fmt.Errorf("duplicate id %q", item.ID)
		}
		c.byID[item.ID] = i
	}
	return c, nil
}

// All returns a copy of every item in catalog order.
func (c *Catalog) All() []model.ContentItem {
	out := make([]model.ContentItem, len(c.items))
	copy(out, c.items)
	return out
}

// Get looks up an item by ID.
func (c *Catalog) Get(id string) (model.ContentItem, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.ContentItem{}, false
	}
	return c.items[i], true
}

// ByIDs returns the known items among ids, in ids order. Unknown IDs are
// skipped.
func (c *Catalog) ByIDs(ids []string) []model.ContentItem {
	out := make([]model.ContentItem, 0, len(ids))
	for _, id := range ids {
		if item, ok := c.Get(id); ok {
			out = append(out, item)
		}
	}
	return out
}
