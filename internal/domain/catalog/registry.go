package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/erp/gestao/internal/domain/shared"
)

// ErrUnknownResource is returned when a module/resource pair is not catalogued
var ErrUnknownResource = shared.NewDomainError("NOT_FOUND", "Recurso desconhecido")

// Registry holds the whitelisted resources. It is built at start-up and read concurrently.
type Registry struct {
	mu        sync.RWMutex
	resources map[string]*Resource
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{resources: make(map[string]*Resource)}
}

// Register validates and adds a resource. Line resources must be registered before their header.
func (r *Registry) Register(res Resource) error {
	if err := res.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.resources[res.FullName()]; exists {
		return fmt.Errorf("catalog: resource %s already registered", res.FullName())
	}
	if res.Lines != nil {
		line, ok := r.resources[res.Module+"."+res.Lines.Resource]
		if !ok {
			return fmt.Errorf("catalog: %s: line resource %q not registered", res.FullName(), res.Lines.Resource)
		}
		if !line.HasColumn(res.Lines.ForeignKey) {
			return fmt.Errorf("catalog: %s: line foreign key %q missing", res.FullName(), res.Lines.ForeignKey)
		}
		if res.Lines.Field == "" || res.HasColumn(res.Lines.Field) {
			return fmt.Errorf("catalog: %s: invalid line field %q", res.FullName(), res.Lines.Field)
		}
	}

	stored := res
	r.resources[res.FullName()] = &stored
	return nil
}

// MustRegister registers a resource and panics on an invalid definition
func (r *Registry) MustRegister(res Resource) {
	if err := r.Register(res); err != nil {
		panic(err)
	}
}

// Lookup returns the resource for a module and name
func (r *Registry) Lookup(module, name string) (*Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.resources[strings.ToLower(module)+"."+strings.ToLower(name)]
	if !ok {
		return nil, ErrUnknownResource
	}
	return res, nil
}

// LineResource returns the line resource of a header, or nil when it has none
func (r *Registry) LineResource(header *Resource) *Resource {
	if header.Lines == nil {
		return nil
	}
	line, err := r.Lookup(header.Module, header.Lines.Resource)
	if err != nil {
		return nil
	}
	return line
}

// Resources returns every resource ordered by module and name
func (r *Registry) Resources() []*Resource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Resource, 0, len(r.resources))
	for _, res := range r.resources {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out
}

// Modules returns the distinct module names in order
func (r *Registry) Modules() []string {
	seen := map[string]bool{}
	var out []string
	for _, res := range r.Resources() {
		if !seen[res.Module] {
			seen[res.Module] = true
			out = append(out, res.Module)
		}
	}
	return out
}

// ModuleResources returns the resources of one module
func (r *Registry) ModuleResources(module string) []*Resource {
	var out []*Resource
	for _, res := range r.Resources() {
		if res.Module == module {
			out = append(out, res)
		}
	}
	return out
}

// Describe renders the catalog as plain text for a model's system prompt
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, module := range r.Modules() {
		fmt.Fprintf(&b, "## %s\n", module)
		for _, res := range r.ModuleResources(module) {
			b.WriteString(res.Describe())
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Describe renders one resource as plain text: name, purpose and a line per column
func (res *Resource) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %s", res.FullName())
	if res.Description != "" {
		fmt.Fprintf(&b, ": %s", res.Description)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "  * %s (%s, chave)\n", res.Key, res.KeyType)
	for _, c := range res.Columns {
		var flags []string
		if c.Required {
			flags = append(flags, "obrigatório")
		}
		if c.ReadOnly || !c.Updatable {
			flags = append(flags, "não editável")
		}
		if c.Money {
			flags = append(flags, "R$")
		}
		if len(c.Enum) > 0 {
			flags = append(flags, "valores: "+strings.Join(c.Enum, "|"))
		}
		fmt.Fprintf(&b, "  * %s (%s", c.Name, c.Type)
		if len(flags) > 0 {
			fmt.Fprintf(&b, "; %s", strings.Join(flags, "; "))
		}
		b.WriteString(")")
		if c.Label != "" {
			fmt.Fprintf(&b, " %s", c.Label)
		}
		b.WriteString("\n")
	}
	if res.Lines != nil {
		fmt.Fprintf(&b, "  * %s: lista de itens de %s.%s\n", res.Lines.Field, res.Module, res.Lines.Resource)
	}
	return b.String()
}
