package prompt

import (
	"context"

	"github.com/ashureev/dreamtales/internal/domain"
)

// Source names where a resolved prompt came from.
type Source string

const (
	SourceCustom      Source = "custom"
	SourceEnvironment Source = "environment"
	SourceBuiltin     Source = "builtin"
)

// Resolver looks up a prompt for a mode. found is false when this source has
// nothing for the mode and the next resolver should be tried.
type Resolver interface {
	Source() Source
	Resolve(ctx context.Context, mode domain.Mode) (text string, found bool, err error)
}

// StaticResolver serves fixed per-mode text. Empty entries are treated as absent.
type StaticResolver struct {
	source Source
	texts  map[domain.Mode]string
}

// NewStaticResolver creates a resolver over fixed texts.
func NewStaticResolver(source Source, texts map[domain.Mode]string) *StaticResolver {
	return &StaticResolver{source: source, texts: texts}
}

// EnvironmentResolver serves deployment-level defaults.
func EnvironmentResolver(child, parent string) *StaticResolver {
	return NewStaticResolver(SourceEnvironment, map[domain.Mode]string{
		domain.ModeChild:  child,
		domain.ModeParent: parent,
	})
}

// BuiltinResolver serves the compiled-in prompts.
func BuiltinResolver() *StaticResolver {
	return NewStaticResolver(SourceBuiltin, map[domain.Mode]string{
		domain.ModeChild:  ChildPersona,
		domain.ModeParent: ParentInterviewer,
	})
}

// Source implements Resolver.
func (r *StaticResolver) Source() Source { return r.source }

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(_ context.Context, mode domain.Mode) (string, bool, error) {
	text := r.texts[mode]
	return text, text != "", nil
}
