package kv

import (
	"context"
	"sync"
	"time"

	"github.com/yeisme/statvault/pkg/configs"
)

// memoryEntry 单个键的值与过期时间.
type memoryEntry struct {
	data      []byte
	expiresAt time.Time // 零值表示不过期
}

// expired 判断条目在 now 时刻是否已过期.
func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryKV 进程内 KV 实现, 用于单节点部署与测试.
// SetNX 在互斥锁内完成检查与写入, 与 Redis 的 SET NX PX 语义一致.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]memoryEntry
}

// NewMemoryKV 创建内存 KV 实例.
func NewMemoryKV(_ context.Context, _ *configs.KVConfig) (KVStore, error) {
	return &MemoryKV{data: make(map[string]memoryEntry)}, nil
}

// Get 获取键的值.
func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.data[key]
	if !exists || entry.expired(time.Now()) {
		delete(m.data, key)

		return nil, ErrKeyNotFound
	}

	// 返回副本
	result := make([]byte, len(entry.data))
	copy(result, entry.data)

	return result, nil
}

// Set 设置键的值.
func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = newEntry(value, ttl)

	return nil
}

// SetNX 仅当键不存在（或已过期）时设置.
func (m *MemoryKV) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.data[key]; exists && !entry.expired(time.Now()) {
		return false, nil
	}

	m.data[key] = newEntry(value, ttl)

	return true, nil
}

// Delete 删除键.
func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)

	return nil
}

// Exists 检查键是否存在.
func (m *MemoryKV) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.data[key]
	if !exists {
		return false, nil
	}

	if entry.expired(time.Now()) {
		delete(m.data, key)

		return false, nil
	}

	return true, nil
}

// Close 关闭存储（内存实现无需操作）.
func (m *MemoryKV) Close() error {
	return nil
}

// newEntry 构造带过期时间的条目.
func newEntry(value []byte, ttl time.Duration) memoryEntry {
	data := make([]byte, len(value))
	copy(data, value)

	entry := memoryEntry{data: data}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	return entry
}

func init() {
	RegisterKVFactory(KVTypeMemory, NewMemoryKV)
}
