// Package bridge carries the structured block a parent produces in parent
// mode over to the next child-mode story.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/ashureev/dreamtales/internal/domain"
	"github.com/ashureev/dreamtales/internal/store"
)

const (
	// Key is the single storage slot for the latest block.
	Key = "parent_data"

	OpenMarker  = "<PARENT_INPUT>"
	CloseMarker = "</PARENT_INPUT>"

	injectOpen  = "<FROM_PARENT>"
	injectClose = "</FROM_PARENT>"
)

var blockPattern = regexp.MustCompile(`(?s)<PARENT_INPUT>.*?</PARENT_INPUT>`)

// Bridge stores at most one ParentDataBlock; every capture overwrites it.
type Bridge struct {
	kv  store.Store
	now func() time.Time
}

// New creates a bridge over kv.
func New(kv store.Store) *Bridge {
	return &Bridge{kv: kv, now: time.Now}
}

// NewWithClock creates a bridge that stamps blocks using now.
func NewWithClock(kv store.Store, now func() time.Time) *Bridge {
	return &Bridge{kv: kv, now: now}
}

// Extract returns the first delimited block in text, markers included.
func Extract(text string) (string, bool) {
	m := blockPattern.FindString(text)
	return m, m != ""
}

// Capture scans a parent-mode turn. A block in the user text wins over one in
// the assistant reply. It returns nil when neither contains a block.
func (b *Bridge) Capture(ctx context.Context, userText, assistantText string) (*domain.ParentDataBlock, error) {
	block, ok := Extract(userText)
	if !ok {
		block, ok = Extract(assistantText)
	}
	if !ok {
		return nil, nil
	}

	pd := &domain.ParentDataBlock{Block: block, UpdatedAt: b.now().UTC()}
	data, err := json.Marshal(pd)
	if err != nil {
		return nil, fmt.Errorf("encode parent data: %w", err)
	}
	if err := b.kv.Put(ctx, Key, string(data), 0); err != nil {
		return nil, fmt.Errorf("save parent data: %w", err)
	}
	return pd, nil
}

// Get returns the stored block, or nil when none exists.
func (b *Bridge) Get(ctx context.Context) (*domain.ParentDataBlock, error) {
	raw, found, err := b.kv.Get(ctx, Key)
	if err != nil {
		return nil, fmt.Errorf("load parent data: %w", err)
	}
	if !found {
		return nil, nil
	}
	var pd domain.ParentDataBlock
	if err := json.Unmarshal([]byte(raw), &pd); err != nil {
		return nil, fmt.Errorf("decode parent data: %w", err)
	}
	return &pd, nil
}

// Clear deletes the stored block.
func (b *Bridge) Clear(ctx context.Context) error {
	if err := b.kv.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear parent data: %w", err)
	}
	return nil
}

// Consume returns prompt with the stored block appended when one exists.
// The block stays stored; consumed reports whether it was injected.
func (b *Bridge) Consume(ctx context.Context, prompt string) (out string, consumed bool, err error) {
	pd, err := b.Get(ctx)
	if err != nil {
		return prompt, false, err
	}
	if pd == nil || pd.Block == "" {
		return prompt, false, nil
	}
	return Inject(prompt, pd.Block), true, nil
}

// Inject appends block to prompt inside a FROM_PARENT section.
func Inject(prompt, block string) string {
	return prompt + "\n\n" + injectOpen + "\n" + block + "\n" + injectClose
}
