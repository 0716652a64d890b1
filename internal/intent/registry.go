package intent

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ErrDuplicateIntent is returned when registering a tag twice.
var ErrDuplicateIntent = errors.New("intent tag already registered")

// Registry holds intent definitions in registration order. Order matters:
// the classifier breaks score ties in favor of the earlier registration.
type Registry struct {
	defs  []*Definition
	byTag map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byTag: make(map[string]*Definition)}
}

// Register adds a definition. Tags must be non-empty and unique.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Tag == "" {
		return errors.New("intent definition requires a tag")
	}
	if def.Tag == TagUnclassified {
		return fmt.Errorf("tag %q is reserved", TagUnclassified)
	}
	if _, exists := r.byTag[def.Tag]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateIntent, def.Tag)
	}
	r.byTag[def.Tag] = def
	r.defs = append(r.defs, def)
	log.Debug().Str("intent", def.Tag).Int("keywords", len(def.Keywords)).Int("patterns", len(def.Patterns)).Msg("intent registered")
	return nil
}

// MustRegister registers a definition and panics on error. Reserved for
// wiring builtin intents at startup.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get returns the definition for a tag.
func (r *Registry) Get(tag string) (*Definition, bool) {
	def, ok := r.byTag[tag]
	return def, ok
}

// All returns the definitions in registration order. The slice is a copy;
// the definitions are shared.
func (r *Registry) All() []*Definition {
	out := make([]*Definition, len(r.defs))
	copy(out, r.defs)
	return out
}

// Len returns the number of registered intents.
func (r *Registry) Len() int {
	return len(r.defs)
}
