package gateway

import (
	"fmt"
	"log"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

type factory struct {
	schema string
	build  func(cfg map[string]any) (Gateway, error)
}

// Compiled-in providers. Each file registers itself in init.
var factories = map[string]factory{}

func register(id, schema string, build func(cfg map[string]any) (Gateway, error)) {
	factories[id] = factory{schema: schema, build: build}
}

// Registry holds the activated gateways, built once at startup from the
// validated per-provider config sections.
type Registry struct {
	byID    map[string]Gateway
	ordered []Gateway
}

// NewRegistry validates each configured provider section against the
// provider's JSON schema and constructs the gateway. An unknown provider
// id or a failing schema is a startup error, not a skipped section.
func NewRegistry(configs map[string]map[string]any) (*Registry, error) {
	r := &Registry{byID: make(map[string]Gateway)}
	for id, cfg := range configs {
		f, ok := factories[id]
		if !ok {
			return nil, fmt.Errorf("unknown payment gateway %q", id)
		}
		if err := validateConfig(id, f.schema, cfg); err != nil {
			return nil, err
		}
		gw, err := f.build(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build gateway %q: %w", id, err)
		}
		r.byID[id] = gw
		r.ordered = append(r.ordered, gw)
		log.Printf("[gateway] activated %s (%s mode)", id, gw.Mode())
	}
	sort.SliceStable(r.ordered, func(i, j int) bool {
		return r.ordered[i].ButtonSort() < r.ordered[j].ButtonSort()
	})
	return r, nil
}

func validateConfig(id, schema string, cfg map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(cfg),
	)
	if err != nil {
		return fmt.Errorf("failed to validate %q gateway config: %w", id, err)
	}
	if !result.Valid() {
		msgs := ""
		for _, desc := range result.Errors() {
			msgs += "; " + desc.String()
		}
		return fmt.Errorf("invalid config for gateway %q%s", id, msgs)
	}
	return nil
}

// NewStaticRegistry builds a registry from already-constructed gateways,
// bypassing config validation. Used by tests and embedders that bring
// their own provider implementations.
func NewStaticRegistry(gws ...Gateway) *Registry {
	r := &Registry{byID: make(map[string]Gateway)}
	for _, gw := range gws {
		r.byID[gw.Metadata().ID] = gw
		r.ordered = append(r.ordered, gw)
	}
	sort.SliceStable(r.ordered, func(i, j int) bool {
		return r.ordered[i].ButtonSort() < r.ordered[j].ButtonSort()
	})
	return r
}

// Get returns the activated gateway, or nil when the id is not configured.
func (r *Registry) Get(id string) Gateway {
	return r.byID[id]
}

// All returns the activated gateways sorted by button order.
func (r *Registry) All() []Gateway {
	return r.ordered
}
