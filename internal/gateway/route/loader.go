package route

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

type routesFile struct {
	Routes []Route `yaml:"routes"`
}

// Load parses a YAML route table. Validation is intentionally strict:
// a bad table at startup or reload should fail loudly rather than route
// traffic to the wrong upstream.
func Load(path string) (*Table, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	return Parse(bs)
}

// Parse builds a Table from raw YAML.
func Parse(bs []byte) (*Table, error) {
	var f routesFile
	if err := yaml.Unmarshal(bs, &f); err != nil {
		return nil, fmt.Errorf("parse routes file: %w", err)
	}
	if len(f.Routes) == 0 {
		return nil, fmt.Errorf("routes file declares no routes")
	}
	for i := range f.Routes {
		r := &f.Routes[i]
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("route %d: pattern %q must start with /", i, r.Pattern)
		}
		if r.Upstream == "" {
			return nil, fmt.Errorf("route %d (%s): upstream is required", i, r.Pattern)
		}
		if r.StripPrefix < 0 {
			return nil, fmt.Errorf("route %d (%s): strip_prefix must be >= 0", i, r.Pattern)
		}
	}
	return NewTable(f.Routes), nil
}

// Holder publishes the active Table. Reads are lock-free; Replace swaps the
// whole table so concurrent requests always observe a consistent route set.
type Holder struct {
	table atomic.Pointer[Table]
}

func NewHolder(t *Table) *Holder {
	h := &Holder{}
	h.table.Store(t)
	return h
}

func (h *Holder) Current() *Table  { return h.table.Load() }
func (h *Holder) Replace(t *Table) { h.table.Store(t) }
