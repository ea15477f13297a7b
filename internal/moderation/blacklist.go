// Package moderation holds the blacklist gate, the warning ladder and the
// report queue sitting between incoming content and delivery.
package moderation

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

type blacklistStore interface {
	AddBlacklistWord(ctx context.Context, word string) (bool, error)
	RemoveBlacklistWord(ctx context.Context, word string) error
	ListBlacklistWords(ctx context.Context) ([]string, error)
}

// Blacklist screens outgoing texts against the stored token list.
type Blacklist struct {
	store blacklistStore
}

func NewBlacklist(store blacklistStore) *Blacklist {
	return &Blacklist{store: store}
}

// CheckText reports whether the text contains any blacklisted token and which
// one matched first. Matching is case-insensitive substring: tokens are stored
// lowercase and the candidate is lowered once.
func (b *Blacklist) CheckText(ctx context.Context, text string) (bool, string, error) {
	words, err := b.store.ListBlacklistWords(ctx)
	if err != nil {
		return false, "", errors.WithMessage(err, "list blacklist")
	}
	lowered := strings.ToLower(text)
	for _, word := range words {
		if word != "" && strings.Contains(lowered, word) {
			return true, word, nil
		}
	}
	return false, "", nil
}

// Add stores the token lowercased; re-adding an existing token returns false.
func (b *Blacklist) Add(ctx context.Context, word string) (bool, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false, nil
	}
	return b.store.AddBlacklistWord(ctx, word)
}

func (b *Blacklist) Remove(ctx context.Context, word string) error {
	return b.store.RemoveBlacklistWord(ctx, strings.ToLower(strings.TrimSpace(word)))
}

func (b *Blacklist) List(ctx context.Context) ([]string, error) {
	return b.store.ListBlacklistWords(ctx)
}
