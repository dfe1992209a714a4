// Package healthcheck собирает readiness probes участников саги.
// Сервис готов принимать доставки событий, когда доступны его MySQL
// (доменные данные, saga log и outbox живут в одной БД) и Redis
// (fast-path идемпотентности).
package healthcheck

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Probe — именованная проверка одной зависимости сервиса.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// MySQL возвращает probe доступности MySQL через GORM.
func MySQL(db *gorm.DB) Probe {
	return Probe{
		Name: "mysql",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}

// Redis возвращает probe доступности Redis.
func Redis(rdb *redis.Client) Probe {
	return Probe{
		Name: "redis",
		Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		},
	}
}

// Readiness объединяет probes в одну функцию для /readyz.
// Возвращает первую ошибку, обёрнутую именем упавшей зависимости.
func Readiness(probes ...Probe) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for _, p := range probes {
			if err := p.Check(ctx); err != nil {
				return fmt.Errorf("%s: %w", p.Name, err)
			}
		}
		return nil
	}
}
