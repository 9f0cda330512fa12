// pkg/registry/schema.go
package registry

import _ "embed"

// Catalog is the on-disk shape of an intent catalog.
type Catalog struct {
	Version     string           `json:"version"`
	LastUpdated string           `json:"lastUpdated,omitempty"`
	Intents     []IntentContract `json:"intents"`
}

// IntentContract describes one intent: which entities it may carry and
// which of them must be present for it to be actionable. Rules and
// examples feed prompt construction only.
type IntentContract struct {
	Name             string                `json:"name"`
	Description      string                `json:"description"`
	Entities         map[string]EntitySpec `json:"entities"`
	RequiredEntities []string              `json:"requiredEntities"`
	Rules            []string              `json:"rules,omitempty"`
	Examples         []Example             `json:"examples,omitempty"`
}

// EntitySpec documents an entity. Values, when set, lists the values the
// model is instructed to use; it is not enforced on input.
type EntitySpec struct {
	Description string   `json:"description"`
	Values      []string `json:"values,omitempty"`
}

type Example struct {
	User   string `json:"user"`
	Output string `json:"output"`
}

// Allows reports whether value is one of the listed values for entity.
// Entities without a value list allow anything.
func (c IntentContract) Allows(entity, value string) bool {
	spec, ok := c.Entities[entity]
	if !ok || len(spec.Values) == 0 {
		return true
	}
	for _, v := range spec.Values {
		if v == value {
			return true
		}
	}
	return false
}

func (c IntentContract) clone() IntentContract {
	out := c
	out.Entities = make(map[string]EntitySpec, len(c.Entities))
	for k, spec := range c.Entities {
		spec.Values = append([]string(nil), spec.Values...)
		out.Entities[k] = spec
	}
	out.RequiredEntities = make([]string, len(c.RequiredEntities))
	copy(out.RequiredEntities, c.RequiredEntities)
	out.Rules = append([]string(nil), c.Rules...)
	out.Examples = append([]Example(nil), c.Examples...)
	return out
}

//go:embed catalog.schema.json
var catalogSchema []byte

//go:embed catalog.json
var defaultCatalog []byte
