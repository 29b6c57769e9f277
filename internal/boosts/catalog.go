// Package boosts holds the read-only catalog of boost types.
package boosts

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Multiplier is the factor applied to a server's base allocation.
// A factor of 1.0 leaves the resource unchanged.
type Multiplier struct {
	RAM  float64 `yaml:"ram" json:"ram"`
	CPU  float64 `yaml:"cpu" json:"cpu"`
	Disk float64 `yaml:"disk" json:"disk"`
}

type BoostType struct {
	ID                 string           `yaml:"id" json:"id"`
	Name               string           `yaml:"name" json:"name"`
	Description        string           `yaml:"description" json:"description"`
	Icon               string           `yaml:"icon" json:"icon"`
	ResourceMultiplier Multiplier       `yaml:"resourceMultiplier" json:"resourceMultiplier"`
	Prices             map[string]int64 `yaml:"prices" json:"prices"`
}

// Price returns the coin cost of a duration tier and whether the tier is offered.
func (t BoostType) Price(tier string) (int64, bool) {
	p, ok := t.Prices[tier]
	return p, ok
}

// Catalog is immutable after construction.
type Catalog struct {
	order []string
	types map[string]BoostType
}

var ErrInvalidCatalog = errors.New("invalid boost catalog")

func NewCatalog(types []BoostType) (*Catalog, error) {
	c := &Catalog{types: make(map[string]BoostType, len(types))}
	for _, t := range types {
		if err := validateType(t); err != nil {
			return nil, err
		}
		if _, dup := c.types[t.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate boost type %q", ErrInvalidCatalog, t.ID)
		}
		c.types[t.ID] = t.clone()
		c.order = append(c.order, t.ID)
	}
	if len(c.order) == 0 {
		return nil, fmt.Errorf("%w: no boost types", ErrInvalidCatalog)
	}
	return c, nil
}

func validateType(t BoostType) error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: boost type without id", ErrInvalidCatalog)
	}
	m := t.ResourceMultiplier
	if m.RAM < 1 || m.CPU < 1 || m.Disk < 1 {
		return fmt.Errorf("%w: %s multipliers must be >= 1", ErrInvalidCatalog, t.ID)
	}
	if len(t.Prices) == 0 {
		return fmt.Errorf("%w: %s has no prices", ErrInvalidCatalog, t.ID)
	}
	for tier, price := range t.Prices {
		if _, err := ResolveDuration(tier); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidCatalog, t.ID, err)
		}
		if price <= 0 {
			return fmt.Errorf("%w: %s tier %s must cost more than 0", ErrInvalidCatalog, t.ID, tier)
		}
	}
	return nil
}

// Tiers returns the offered duration tiers, shortest first.
func (t BoostType) Tiers() []string {
	tiers := make([]string, 0, len(t.Prices))
	for tier := range t.Prices {
		tiers = append(tiers, tier)
	}
	sort.Slice(tiers, func(i, j int) bool {
		di, _ := ResolveDuration(tiers[i])
		dj, _ := ResolveDuration(tiers[j])
		if di == dj {
			return tiers[i] < tiers[j]
		}
		return di < dj
	})
	return tiers
}

func (t BoostType) clone() BoostType {
	prices := make(map[string]int64, len(t.Prices))
	for k, v := range t.Prices {
		prices[k] = v
	}
	t.Prices = prices
	return t
}

func (c *Catalog) Get(id string) (BoostType, bool) {
	t, ok := c.types[id]
	if !ok {
		return BoostType{}, false
	}
	return t.clone(), true
}

// List returns every boost type in configured order.
func (c *Catalog) List() []BoostType {
	out := make([]BoostType, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.types[id].clone())
	}
	return out
}

// Types returns the catalog keyed by id.
func (c *Catalog) Types() map[string]BoostType {
	out := make(map[string]BoostType, len(c.types))
	for id, t := range c.types {
		out[id] = t.clone()
	}
	return out
}

// ResolveDuration turns a tier label such as "1h", "30m", "7d" or "2w" into a duration.
func ResolveDuration(tier string) (time.Duration, error) {
	tier = strings.TrimSpace(tier)
	if len(tier) < 2 {
		return 0, fmt.Errorf("invalid duration tier %q", tier)
	}
	n, err := strconv.Atoi(tier[:len(tier)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid duration tier %q", tier)
	}
	var unit time.Duration
	switch tier[len(tier)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid duration tier %q", tier)
	}
	return time.Duration(n) * unit, nil
}

type catalogFile struct {
	Boosts []BoostType `yaml:"boosts"`
}

// Load reads the catalog from a YAML file, or returns the built-in catalog
// when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultTypes())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boost catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return NewCatalog(f.Boosts)
}
