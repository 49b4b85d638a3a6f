package app

import (
	"strings"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/ordering/internal/cart"
	"github.com/appetiteclub/ordering/internal/printer"
	"github.com/appetiteclub/ordering/pkg/event"
)

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"

	EventsNone       = "none"
	EventsNATS       = "nats"
	EventsNATSStream = "nats-stream"
	EventsKafka      = "kafka"

	CatalogStore = "store"
	CatalogHTTP  = "http"
)

// settings is the typed view of the service configuration.
type settings struct {
	DBBackend string

	EventsBackend string
	NATSURL       string
	KafkaBrokers  []string
	KafkaTopic    string

	CatalogBackend string
	MenuURL        string
	RedisAddr      string
	RedisTTL       time.Duration

	Pricing cart.Pricing
	Printer printer.Config

	SigningKey string
	DemoSeed   bool
}

func loadSettings(config *apt.Config) settings {
	return settings{
		DBBackend: strings.ToLower(config.GetStringOrDef("db.backend", BackendMongo)),

		EventsBackend: strings.ToLower(config.GetStringOrDef("events.backend", EventsNone)),
		NATSURL:       config.GetStringOrDef("nats.url", "nats://localhost:4222"),
		KafkaBrokers:  config.GetStringSliceOrDef("kafka.brokers", []string{"localhost:9092"}),
		KafkaTopic:    config.GetStringOrDef("kafka.topic", event.KitchenTicketsTopic),

		CatalogBackend: strings.ToLower(config.GetStringOrDef("catalog.backend", CatalogStore)),
		MenuURL:        config.GetStringOrDef("services.menu.url", "http://localhost:8087"),
		RedisAddr:      config.GetStringOrDef("cache.redis.addr", ""),
		RedisTTL:       positive(config.GetDurationOrDef("cache.redis.ttl", 5*time.Minute), 5*time.Minute),

		Pricing: cart.Pricing{
			DeliveryFee: nonNegative(config.GetFloat64OrDef("pricing.delivery_fee", cart.DefaultPricing.DeliveryFee), cart.DefaultPricing.DeliveryFee),
			Currency:    config.GetStringOrDef("pricing.currency", cart.DefaultPricing.Currency),
		},
		Printer: printer.Config{
			ScanInterval: positive(config.GetDurationOrDef("printer.scan_interval", printer.DefaultScanInterval), printer.DefaultScanInterval),
			MaxRetries:   positive(config.GetIntOrDef("printer.max_retries", printer.DefaultMaxRetries), printer.DefaultMaxRetries),
			Concurrency:  positive(config.GetIntOrDef("printer.concurrency", printer.DefaultConcurrency), printer.DefaultConcurrency),
		},

		SigningKey: config.GetStringOrDef("auth.tenant.signing_key", ""),
		DemoSeed:   config.GetBoolOrFalse("seeding.demo"),
	}
}

func positive[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func nonNegative(v, def float64) float64 {
	if v < 0 {
		return def
	}
	return v
}
