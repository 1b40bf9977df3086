package converters

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Catalog indexes device definitions by the Zigbee model ID devices report.
//
// Thread Safety: All methods are safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	models map[string]*Model // by Zigbee model ID
	byName map[string]*Model // by Model
}

// NewCatalog builds a catalog from models. Two definitions claiming the same
// Zigbee model ID is an error.
func NewCatalog(models ...Model) (*Catalog, error) {
	c := &Catalog{
		models: make(map[string]*Model),
		byName: make(map[string]*Model),
	}
	for i := range models {
		if err := c.Add(models[i]); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// DefaultCatalog returns a catalog holding the built-in definitions.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(builtinModels()...)
	if err != nil {
		// Built-in definitions are static.
		panic(fmt.Sprintf("converters: invalid built-in catalog: %v", err))
	}
	return c
}

// Add registers a definition.
func (c *Catalog) Add(m Model) error {
	if m.Model == "" || len(m.ZigbeeModel) == 0 {
		return fmt.Errorf("%w: model and zigbee model IDs are required", ErrInvalidModel)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range m.ZigbeeModel {
		if _, exists := c.models[id]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateModel, id)
		}
	}
	model := &m
	for _, id := range m.ZigbeeModel {
		c.models[id] = model
	}
	c.byName[m.Model] = model
	return nil
}

// FindByZigbeeModel returns the definition for a reported model ID.
func (c *Catalog) FindByZigbeeModel(id string) (*Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[id]
	return m, ok
}

// Alias makes zigbeeModel resolve to the definition found by target, which
// may be either a Zigbee model ID or a model name such as "LED1545G12".
func (c *Catalog) Alias(zigbeeModel, target string) error {
	if zigbeeModel == "" {
		return fmt.Errorf("%w: empty model ID", ErrInvalidAlias)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.models[zigbeeModel]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateModel, zigbeeModel)
	}
	m, ok := c.models[target]
	if !ok {
		m, ok = c.byName[target]
	}
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownModel, target)
	}
	c.models[zigbeeModel] = m
	return nil
}

// aliasFile is the YAML layout read by LoadAliases:
//
//	aliases:
//	  "TRADFRI bulb GU10 WS 400lm": "LED1545G12"
type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliases reads extra Zigbee model IDs from a YAML file and registers
// them with Alias. It returns the number of aliases added.
func (c *Catalog) LoadAliases(path string) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from trusted config
	if err != nil {
		return 0, fmt.Errorf("reading alias file: %w", err)
	}

	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parsing alias file: %w", err)
	}

	ids := make([]string, 0, len(f.Aliases))
	for id := range f.Aliases {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := c.Alias(id, f.Aliases[id]); err != nil {
			return 0, fmt.Errorf("alias %q: %w", id, err)
		}
	}
	return len(ids), nil
}

// ZigbeeModelCount returns the number of Zigbee model IDs the catalog
// recognises, aliases included. One definition may answer to several IDs.
func (c *Catalog) ZigbeeModelCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}

// Models returns every definition once, ordered by model name.
func (c *Catalog) Models() []*Model {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Model, 0, len(c.byName))
	for _, m := range c.byName {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}
