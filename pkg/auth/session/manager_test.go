package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tiendas-backend/pkg/config"
	redisclient "github.com/angelmondragon/tiendas-backend/pkg/redis"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", redisclient.Nil
	}
	return val, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) DelIfEquals(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.data[key]; !ok || current != value {
		return false, nil
	}
	delete(m.data, key)
	return true, nil
}

func (m *memoryStore) SessionKey(accessID string) string {
	return "sess:" + accessID
}

func TestManagerIssueAndRotate(t *testing.T) {
	store := newMemoryStore()
	manager := &Manager{store: store, ttl: time.Hour}
	ctx := context.Background()

	accessID, token, err := manager.Issue(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, store.data[store.SessionKey(accessID)])

	_, _, err = manager.Rotate(ctx, accessID, "wrong")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	newAccessID, newToken, err := manager.Rotate(ctx, accessID, token)
	require.NoError(t, err)
	assert.NotEqual(t, accessID, newAccessID)
	assert.NotContains(t, store.data, store.SessionKey(accessID))
	assert.Equal(t, newToken, store.data[store.SessionKey(newAccessID)])

	_, _, err = manager.Rotate(ctx, accessID, token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "old session cannot be rotated twice")
}

func TestManagerHasSessionAndRevoke(t *testing.T) {
	store := newMemoryStore()
	manager := &Manager{store: store, ttl: time.Hour}
	ctx := context.Background()

	accessID, _, err := manager.Issue(ctx)
	require.NoError(t, err)

	ok, err := manager.HasSession(ctx, accessID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, manager.Revoke(ctx, accessID))

	ok, err = manager.HasSession(ctx, accessID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = manager.HasSession(ctx, " ")
	assert.Error(t, err)
}

func TestManagerRotateConsumesTokenOnce(t *testing.T) {
	store := newMemoryStore()
	manager := &Manager{store: store, ttl: time.Hour}
	ctx := context.Background()

	accessID, token, err := manager.Issue(ctx)
	require.NoError(t, err)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		rotated  int
		rejected int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := manager.Rotate(ctx, accessID, token)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				rotated++
			} else if errors.Is(err, ErrInvalidRefreshToken) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, rotated)
	assert.Equal(t, 7, rejected)
	assert.Len(t, store.data, 1)
}

func TestNewManagerValidatesTTL(t *testing.T) {
	_, err := NewManager(nil, config.JWTConfig{})
	assert.Error(t, err)

	_, err = NewManager(newMemoryStore(), config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	assert.Error(t, err)
}
