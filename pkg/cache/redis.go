// Package cache 提供可选的查询向量缓存，默认关闭。
// 命中键是规范化查询文本的 SHA-256：同一文本的向量是确定的，
// 所以缓存值永不失真，TTL 只用来约束内存占用。
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis/v8"

	"cinematch-go/internal/config"
	"cinematch-go/pkg/log"
)

// EmbeddingCache 按文本内容缓存句向量。
type EmbeddingCache struct {
	rdb *redis.Client
	ttl time.Duration
	dim int
}

// NewEmbeddingCache 连接 Redis 并返回缓存实例。连接失败视为配置错误，
// 直接终止启动：缓存是显式开启的，开了连不上不应被静默降级掩盖。
func NewEmbeddingCache(cfg config.CacheConfig, dim int) *EmbeddingCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("连接 Redis 失败", err)
	}

	log.Infof("[EmbeddingCache] Redis 连接成功, addr: %s, ttl: %ds", cfg.Redis.Addr, cfg.TTLSeconds)
	return &EmbeddingCache{
		rdb: rdb,
		ttl: time.Duration(cfg.TTLSeconds) * time.Second,
		dim: dim,
	}
}

// Get 返回文本对应的缓存向量，未命中或数据异常时返回 nil。
// 缓存层的任何故障都不应影响请求：拿不到就走推理。
func (c *EmbeddingCache) Get(ctx context.Context, text string) []float32 {
	raw, err := c.rdb.Get(ctx, c.key(text)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warnf("[EmbeddingCache] 读取缓存失败: %v", err)
		}
		return nil
	}
	if len(raw) != c.dim*4 {
		log.Warnf("[EmbeddingCache] 缓存向量长度 %d 异常, 按未命中处理", len(raw))
		return nil
	}

	vec := make([]float32, c.dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return vec
}

// Set 写入文本对应的向量，写失败仅记录告警。
func (c *EmbeddingCache) Set(ctx context.Context, text string, vec []float32) {
	raw := make([]byte, len(vec)*4)
	for i, x := range vec {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], math.Float32bits(x))
	}
	if err := c.rdb.Set(ctx, c.key(text), raw, c.ttl).Err(); err != nil {
		log.Warnf("[EmbeddingCache] 写入缓存失败: %v", err)
	}
}

func (c *EmbeddingCache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("cinematch:emb:%s", hex.EncodeToString(sum[:]))
}
