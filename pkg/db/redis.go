package db

import (
	"github.com/redis/go-redis/v9"

	"example.com/fulfillment-saga/pkg/config"
)

// ConnectRedis создаёт клиент Redis для fast-path проверок идемпотентности.
// clientName виден в CLIENT LIST и позволяет различать участников саги,
// делящих один Redis.
func ConnectRedis(clientName string, cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   clientName,
		MinIdleConns: 2,
	})
}
