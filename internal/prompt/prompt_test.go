package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/ashureev/dreamtales/internal/domain"
	"github.com/ashureev/dreamtales/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingConfiguration(t *testing.T) {
	s := New(store.NewMemory(), EnvironmentResolver("", ""))

	_, err := s.Get(context.Background(), domain.ModeChild)
	require.ErrorIs(t, err, domain.ErrConfigurationMissing)
}

func TestFallbackOrder(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), EnvironmentResolver("env child", ""), BuiltinResolver())

	p, err := s.Get(ctx, domain.ModeChild)
	require.NoError(t, err)
	assert.Equal(t, "env child", p.Text)
	assert.Equal(t, SourceEnvironment, p.Source)
	assert.False(t, p.IsCustom())

	p, err = s.Get(ctx, domain.ModeParent)
	require.NoError(t, err)
	assert.Equal(t, ParentInterviewer, p.Text)
	assert.Equal(t, SourceBuiltin, p.Source)
}

func TestSetThenResetRestoresFallback(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), EnvironmentResolver("env child", "env parent"))

	saved, err := s.Set(ctx, domain.ModeChild, "  custom story prompt \n")
	require.NoError(t, err)
	assert.Equal(t, "custom story prompt", saved)

	p, err := s.Get(ctx, domain.ModeChild)
	require.NoError(t, err)
	assert.Equal(t, "custom story prompt", p.Text)
	assert.True(t, p.IsCustom())

	fb, err := s.Fallback(ctx, domain.ModeChild)
	require.NoError(t, err)
	assert.Equal(t, "env child", fb.Text)

	require.NoError(t, s.Reset(ctx, domain.ModeChild))
	p, err = s.Get(ctx, domain.ModeChild)
	require.NoError(t, err)
	assert.Equal(t, "env child", p.Text)
	assert.False(t, p.IsCustom())
}

func TestSetRejectsInvalidAndKeepsPrevious(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), BuiltinResolver())

	_, err := s.Set(ctx, domain.ModeParent, "keep me")
	require.NoError(t, err)

	_, err = s.Set(ctx, domain.ModeParent, strings.Repeat("x", domain.MaxPromptLength+1))
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = s.Set(ctx, domain.ModeParent, "   ")
	require.ErrorIs(t, err, domain.ErrValidation)

	p, err := s.Get(ctx, domain.ModeParent)
	require.NoError(t, err)
	assert.Equal(t, "keep me", p.Text)
}

func TestModesAreSeparate(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory(), BuiltinResolver())

	_, err := s.Set(ctx, domain.ModeParent, "parent override")
	require.NoError(t, err)

	p, err := s.Get(ctx, domain.ModeChild)
	require.NoError(t, err)
	assert.Equal(t, ChildPersona, p.Text)
}

func TestBuiltinParentPromptDescribesBlock(t *testing.T) {
	assert.Contains(t, ParentInterviewer, "<PARENT_INPUT>")
	assert.Contains(t, ParentInterviewer, "</PARENT_INPUT>")
}
