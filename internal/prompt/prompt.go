// Package prompt resolves and edits the per-mode system prompts.
package prompt

import (
	"context"
	"fmt"

	"github.com/ashureev/dreamtales/internal/domain"
	"github.com/ashureev/dreamtales/internal/store"
)

// Prompt is a resolved system prompt.
type Prompt struct {
	Text   string
	Source Source
}

// IsCustom reports whether the prompt is an operator override.
func (p Prompt) IsCustom() bool { return p.Source == SourceCustom }

// Store resolves prompts through custom -> fallbacks in order and edits the
// custom override.
type Store struct {
	kv        store.Store
	fallbacks []Resolver
}

// New creates a prompt store. fallbacks are tried, in order, after the
// custom value stored in kv.
func New(kv store.Store, fallbacks ...Resolver) *Store {
	return &Store{kv: kv, fallbacks: fallbacks}
}

// Key returns the storage key of the custom prompt for mode.
func Key(mode domain.Mode) string {
	return "prompt:" + string(mode)
}

// Get resolves the prompt for mode. It returns ErrConfigurationMissing when
// no source has one.
func (s *Store) Get(ctx context.Context, mode domain.Mode) (Prompt, error) {
	return s.resolve(ctx, mode, s.chain())
}

// Fallback resolves mode while ignoring any custom override.
func (s *Store) Fallback(ctx context.Context, mode domain.Mode) (Prompt, error) {
	return s.resolve(ctx, mode, s.fallbacks)
}

// Set validates, trims and stores a custom prompt for mode.
func (s *Store) Set(ctx context.Context, mode domain.Mode, text string) (string, error) {
	trimmed, err := domain.ValidatePrompt(text)
	if err != nil {
		return "", err
	}
	if err := s.kv.Put(ctx, Key(mode), trimmed, 0); err != nil {
		return "", fmt.Errorf("save %s prompt: %w", mode, err)
	}
	return trimmed, nil
}

// Reset removes the custom override for mode.
func (s *Store) Reset(ctx context.Context, mode domain.Mode) error {
	if err := s.kv.Delete(ctx, Key(mode)); err != nil {
		return fmt.Errorf("delete %s prompt: %w", mode, err)
	}
	return nil
}

func (s *Store) chain() []Resolver {
	chain := make([]Resolver, 0, len(s.fallbacks)+1)
	chain = append(chain, customResolver{kv: s.kv})
	return append(chain, s.fallbacks...)
}

func (s *Store) resolve(ctx context.Context, mode domain.Mode, chain []Resolver) (Prompt, error) {
	for _, r := range chain {
		text, found, err := r.Resolve(ctx, mode)
		if err != nil {
			return Prompt{}, fmt.Errorf("resolve %s prompt from %s: %w", mode, r.Source(), err)
		}
		if found {
			return Prompt{Text: text, Source: r.Source()}, nil
		}
	}
	return Prompt{}, fmt.Errorf("%w: no %s prompt configured. Please set a master prompt before using the app", domain.ErrConfigurationMissing, mode)
}

type customResolver struct {
	kv store.Store
}

func (customResolver) Source() Source { return SourceCustom }

func (c customResolver) Resolve(ctx context.Context, mode domain.Mode) (string, bool, error) {
	text, found, err := c.kv.Get(ctx, Key(mode))
	if err != nil {
		return "", false, err
	}
	return text, found && text != "", nil
}
