// Package config предоставляет загрузку конфигурации из переменных окружения.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config содержит полную конфигурацию приложения.
type Config struct {
	App       AppConfig
	MySQL     MySQLConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Publisher PublisherConfig
	Services  ServicesConfig
	HTTP      HTTPConfig
	Payment   PaymentConfig
	Jaeger    JaegerConfig
	Metrics   MetricsConfig
}

// AppConfig содержит общие настройки приложения.
type AppConfig struct {
	Name      string `env:"APP_NAME" envDefault:"fulfillment-saga"`
	Env       string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// MySQLConfig содержит настройки подключения к MySQL.
type MySQLConfig struct {
	Host            string        `env:"MYSQL_HOST" envDefault:"localhost"`
	Port            int           `env:"MYSQL_PORT" envDefault:"3306"`
	User            string        `env:"MYSQL_USER" envDefault:"root"`
	Password        string        `env:"MYSQL_PASSWORD" envDefault:"root"`
	Database        string        `env:"MYSQL_DATABASE" envDefault:"fulfillment"`
	MaxOpenConns    int           `env:"MYSQL_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"MYSQL_MAX_IDLE_CONNS" envDefault:"10"`
	ConnMaxLifetime time.Duration `env:"MYSQL_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// DSN возвращает строку подключения к MySQL.
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// RedisConfig содержит настройки подключения к Redis.
// Redis используется как fast-path проверка идемпотентности;
// при недоступности Redis уникальный ключ в БД остаётся последней защитой.
type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     int    `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD" envDefault:""`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// Addr возвращает адрес Redis сервера.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// KafkaConfig содержит настройки audit-зеркала событий саги.
// HTTP остаётся единственным командным транспортом; Kafka — опциональный
// поток для внешних потребителей (аналитика, аудит).
type KafkaConfig struct {
	Enabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Topic   string   `env:"KAFKA_AUDIT_TOPIC" envDefault:"saga.events"`
}

// PublisherConfig содержит настройки Outbox Publisher.
type PublisherConfig struct {
	BatchSize        int `env:"BATCH_SIZE" envDefault:"10"`
	PollIntervalMS   int `env:"POLL_INTERVAL_MS" envDefault:"1000"`
	RequestTimeoutMS int `env:"REQUEST_TIMEOUT_MS" envDefault:"5000"`
	MaxRetries       int `env:"MAX_RETRIES" envDefault:"3"`
}

// PollInterval возвращает интервал опроса таблицы outbox.
func (c PublisherConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// RequestTimeout возвращает таймаут одного исходящего HTTP запроса.
func (c PublisherConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// ServicesConfig содержит базовые URL сервисов-участников саги.
type ServicesConfig struct {
	OrderURL     string `env:"ORDER_SERVICE_URL" envDefault:"http://localhost:3001"`
	PaymentURL   string `env:"PAYMENT_SERVICE_URL" envDefault:"http://localhost:3002"`
	InventoryURL string `env:"INVENTORY_SERVICE_URL" envDefault:"http://localhost:3003"`
	ShippingURL  string `env:"SHIPPING_SERVICE_URL" envDefault:"http://localhost:3004"`
}

// URLMap возвращает отображение имени сервиса на его базовый URL.
// Используется Outbox Publisher для маршрутизации событий.
func (c ServicesConfig) URLMap() map[string]string {
	return map[string]string{
		"order":     c.OrderURL,
		"payment":   c.PaymentURL,
		"inventory": c.InventoryURL,
		"shipping":  c.ShippingURL,
	}
}

// HTTPConfig содержит HTTP порты сервисов.
// Локально каждый сервис слушает свой порт 300{1..4}.
type HTTPConfig struct {
	OrderPort     int `env:"ORDER_HTTP_PORT" envDefault:"3001"`
	PaymentPort   int `env:"PAYMENT_HTTP_PORT" envDefault:"3002"`
	InventoryPort int `env:"INVENTORY_HTTP_PORT" envDefault:"3003"`
	ShippingPort  int `env:"SHIPPING_HTTP_PORT" envDefault:"3004"`
}

// PaymentConfig содержит настройки симуляции платежей.
// FailureRate — доля отклонённых платежей. Значение задаётся извне,
// чтобы тесты и демо могли управлять вероятностью отказа.
type PaymentConfig struct {
	FailureRate float64 `env:"PAYMENT_FAILURE_RATE" envDefault:"0.1"`
}

// JaegerConfig содержит настройки трассировки Jaeger.
type JaegerConfig struct {
	Enabled  bool   `env:"JAEGER_ENABLED" envDefault:"false"`
	Host     string `env:"JAEGER_HOST" envDefault:"localhost"`
	OTLPPort int    `env:"JAEGER_OTLP_PORT" envDefault:"4317"`
}

// OTLPEndpoint возвращает OTLP gRPC endpoint для Jaeger.
func (c JaegerConfig) OTLPEndpoint() string {
	return fmt.Sprintf("%s:%d", c.Host, c.OTLPPort)
}

// MetricsConfig содержит настройки Prometheus метрик.
// Локально каждый сервис переопределяет METRICS_PORT.
type MetricsConfig struct {
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`
	Port    int  `env:"METRICS_PORT" envDefault:"9090"`
}

// Addr возвращает адрес для Metrics HTTP сервера.
func (c MetricsConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load загружает конфигурацию из переменных окружения.
// Опционально загружает .env файл, если он существует.
func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файл не найден)
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("ошибка парсинга конфигурации: %w", err)
	}

	return cfg, nil
}

// IsDevelopment возвращает true, если приложение запущено в development режиме.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction возвращает true, если приложение запущено в production режиме.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
