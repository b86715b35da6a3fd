package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/statvault/pkg/configs"
)

func newTestKV(t *testing.T) KVStore {
	t.Helper()

	store, err := NewMemoryKV(context.Background(), &configs.KVConfig{Type: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

// TestMemoryKVBasic 测试基础的读写删.
func TestMemoryKVBasic(t *testing.T) {
	ctx := context.Background()
	store := newTestKV(t)

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), 0))

	got, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	exists, err := store.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(ctx, "k1"))

	_, err = store.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

// TestMemoryKVTTL 测试过期键不可读.
func TestMemoryKVTTL(t *testing.T) {
	ctx := context.Background()
	store := newTestKV(t)

	require.NoError(t, store.Set(ctx, "k1", []byte("v1"), 30*time.Millisecond))

	_, err := store.Get(ctx, "k1")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = store.Get(ctx, "k1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

// TestMemoryKVSetNX 测试 SetNX 的互斥语义.
func TestMemoryKVSetNX(t *testing.T) {
	ctx := context.Background()
	store := newTestKV(t)

	ok, err := store.SetNX(ctx, "lock", []byte("node-a"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// 键已存在, 第二次失败
	ok, err = store.SetNX(ctx, "lock", []byte("node-b"), time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// 持有者未变
	got, err := store.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, []byte("node-a"), got)
}

// TestMemoryKVSetNXExpired 测试持锁过期后锁可被重新获取.
func TestMemoryKVSetNXExpired(t *testing.T) {
	ctx := context.Background()
	store := newTestKV(t)

	ok, err := store.SetNX(ctx, "lock", []byte("node-a"), 30*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	ok, err = store.SetNX(ctx, "lock", []byte("node-b"), time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestRegisteredKVTypes 内存与Redis实现均已注册.
func TestRegisteredKVTypes(t *testing.T) {
	types := GetRegisteredKVTypes()
	assert.Contains(t, types, KVTypeMemory)
	assert.Contains(t, types, KVTypeRedis)
}
