// Package idempotency предоставляет fast-path проверку идемпотентности
// через Redis SETNX. Guard — только оптимизация горячего пути: последним
// рубежом против дубликатов всегда остаётся уникальный ключ в БД.
// При недоступности Redis Guard деградирует в no-op.
package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/fulfillment-saga/pkg/logger"
)

// defaultTTL — время жизни ключа идемпотентности (24 часа).
const defaultTTL = 24 * time.Hour

// Guard — fast-path защита от повторной обработки запроса.
type Guard struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewGuard создаёт Guard с префиксом ключей сервиса
// (например "payment:idempotency:").
func NewGuard(rdb *redis.Client, prefix string) *Guard {
	return &Guard{rdb: rdb, prefix: prefix, ttl: defaultTTL}
}

// FirstSeen пытается атомарно пометить ключ как обрабатываемый (SETNX).
// Возвращает false, если ключ уже встречался — caller должен перечитать
// результат из БД. При ошибке Redis возвращает true: обработка продолжается,
// БД защитит от дубликатов.
func (g *Guard) FirstSeen(ctx context.Context, key string) bool {
	if g == nil || g.rdb == nil {
		return true
	}

	wasSet, err := g.rdb.SetNX(ctx, g.prefix+key, "processing", g.ttl).Result()
	if err != nil {
		logger.FromContext(ctx).Warn().
			Err(err).
			Str("key", key).
			Msg("Ошибка Redis при проверке идемпотентности, продолжаем через БД")
		return true
	}

	return wasSet
}

// Release снимает пометку обработки.
// Вызывается, если обработка запроса откатилась и повтор допустим.
func (g *Guard) Release(ctx context.Context, key string) {
	if g == nil || g.rdb == nil {
		return
	}

	if err := g.rdb.Del(ctx, g.prefix+key).Err(); err != nil {
		logger.FromContext(ctx).Warn().
			Err(err).
			Str("key", key).
			Msg("Ошибка Redis при снятии ключа идемпотентности")
	}
}
