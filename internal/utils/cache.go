package utils

import (
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheItem 包装缓存数据和过期时间
type cacheItem[V any] struct {
	data      V
	expiresAt time.Time
}

// Cache 带 TTL 的本地 LRU 缓存
type Cache[V any] struct {
	lruCache *lru.Cache[string, cacheItem[V]]
	now      func() time.Time
}

// NewCache 创建容量为 size 的缓存
func NewCache[V any](size int) *Cache[V] {
	l, err := lru.New[string, cacheItem[V]](size)
	if err != nil {
		// 只有 size <= 0 时才会出错
		l, _ = lru.New[string, cacheItem[V]](1)
	}
	return &Cache[V]{lruCache: l, now: time.Now}
}

// Set 设置缓存，TTL 为过期时间
func (c *Cache[V]) Set(key string, data V, ttl time.Duration) {
	c.lruCache.Add(key, cacheItem[V]{
		data:      data,
		expiresAt: c.now().Add(ttl),
	})
}

// Get 获取缓存，不存在或已过期时 ok 为 false
func (c *Cache[V]) Get(key string) (v V, ok bool) {
	val, ok := c.lruCache.Get(key)
	if !ok {
		return v, false
	}

	if c.now().After(val.expiresAt) {
		c.lruCache.Remove(key)
		return v, false
	}

	return val.data, true
}

// Delete 删除指定缓存
func (c *Cache[V]) Delete(key string) {
	c.lruCache.Remove(key)
}

// DeletePrefix 删除某一前缀下的全部缓存
func (c *Cache[V]) DeletePrefix(prefix string) {
	for _, k := range c.lruCache.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lruCache.Remove(k)
		}
	}
}

func (c *Cache[V]) Len() int {
	return c.lruCache.Len()
}
