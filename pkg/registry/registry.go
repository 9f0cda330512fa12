// pkg/registry/registry.go
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "viora-nlu/internal/common/errors"
	"viora-nlu/internal/models"
)

// Registry is the read-only intent catalog. It is safe for concurrent use.
type Registry struct {
	version string
	order   []string
	byName  map[string]IntentContract
}

// Lookup returns a copy of the contract for name. A miss is not an error.
func (r *Registry) Lookup(name string) (IntentContract, bool) {
	c, ok := r.byName[name]
	if !ok {
		return IntentContract{}, false
	}
	return c.clone(), true
}

// Names returns intent names in catalog order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Len() int { return len(r.order) }

func (r *Registry) Version() string { return r.version }

// Contracts returns copies of every contract in catalog order.
func (r *Registry) Contracts() []IntentContract {
	out := make([]IntentContract, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].clone())
	}
	return out
}

// Default returns the built-in catalog.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultCatalog))
}

// MustDefault panics if the built-in catalog is invalid.
func MustDefault() *Registry {
	reg, err := Default()
	if err != nil {
		panic(err)
	}
	return reg
}

func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Load reads a JSON catalog, validates it against the catalog schema and
// the contract invariants, and builds a Registry.
func Load(r io.Reader) (*Registry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, apperrors.NewCatalogInvalidError(err.Error())
	}

	return build(cat)
}

func validateSchema(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(catalogSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return apperrors.NewCatalogInvalidError(fmt.Sprintf("schema validation error: %v", err))
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return apperrors.NewCatalogInvalidError(strings.Join(errs, "; "))
	}
	return nil
}

func build(cat Catalog) (*Registry, error) {
	reg := &Registry{
		version: cat.Version,
		order:   make([]string, 0, len(cat.Intents)),
		byName:  make(map[string]IntentContract, len(cat.Intents)),
	}

	for _, c := range cat.Intents {
		if _, dup := reg.byName[c.Name]; dup {
			return nil, apperrors.NewCatalogInvalidError(fmt.Sprintf("duplicate intent %q", c.Name))
		}
		for _, key := range c.RequiredEntities {
			if _, ok := c.Entities[key]; !ok {
				return nil, apperrors.NewCatalogInvalidError(
					fmt.Sprintf("intent %q requires undeclared entity %q", c.Name, key))
			}
		}
		if c.Entities == nil {
			c.Entities = map[string]EntitySpec{}
		}
		reg.byName[c.Name] = c.clone()
		reg.order = append(reg.order, c.Name)
	}

	for _, sentinel := range []string{models.IntentUnknown, models.IntentClarification} {
		c, ok := reg.byName[sentinel]
		if !ok {
			return nil, apperrors.NewCatalogInvalidError(fmt.Sprintf("missing sentinel intent %q", sentinel))
		}
		if len(c.RequiredEntities) > 0 {
			return nil, apperrors.NewCatalogInvalidError(
				fmt.Sprintf("sentinel intent %q must not require entities", sentinel))
		}
	}

	return reg, nil
}
