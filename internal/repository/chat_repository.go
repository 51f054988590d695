package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/Altav1sta/stocks-checker/internal/domain/models"
	drepo "github.com/Altav1sta/stocks-checker/internal/domain/repository"
	"github.com/Altav1sta/stocks-checker/internal/service/cache"
)

const chatsKey = "chats"

// CachedChatRegistry implements ChatRegistry over a BytesCache, so chats
// survive restarts when the cache is Redis-backed. The whole registry lives
// under one key as a JSON map; a registry of chat ids stays tiny, so
// rewriting it on every change is fine.
type CachedChatRegistry struct {
	cache cache.BytesCache
	mu    sync.Mutex
}

func NewCachedChatRegistry(c cache.BytesCache) drepo.ChatRegistry {
	return &CachedChatRegistry{cache: c}
}

func (r *CachedChatRegistry) Add(ctx context.Context, chat models.Chat) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chats, err := r.load()
	if err != nil {
		return err
	}
	chats[chat.ID] = chat
	return r.save(chats)
}

func (r *CachedChatRegistry) List(ctx context.Context) ([]models.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chats, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.Chat, 0, len(chats))
	for _, c := range chats {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *CachedChatRegistry) Remove(ctx context.Context, chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	chats, err := r.load()
	if err != nil {
		return err
	}
	delete(chats, chatID)
	return r.save(chats)
}

func (r *CachedChatRegistry) load() (map[int64]models.Chat, error) {
	b, ok, err := r.cache.GetBytes(chatsKey)
	if err != nil {
		return nil, fmt.Errorf("chat registry load: %w", err)
	}
	chats := make(map[int64]models.Chat)
	if !ok || len(b) == 0 {
		return chats, nil
	}
	if err := json.Unmarshal(b, &chats); err != nil {
		return nil, fmt.Errorf("chat registry decode: %w", err)
	}
	return chats, nil
}

func (r *CachedChatRegistry) save(chats map[int64]models.Chat) error {
	b, err := json.Marshal(chats)
	if err != nil {
		return fmt.Errorf("chat registry encode: %w", err)
	}
	// ttl 0 means no expiry
	if err := r.cache.SetBytes(chatsKey, b, 0); err != nil {
		return fmt.Errorf("chat registry save: %w", err)
	}
	return nil
}
