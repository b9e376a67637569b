package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server              ServerConfig   `mapstructure:"server"`
	Store               StoreConfig    `mapstructure:"store"`
	Mongo               MongoConfig    `mapstructure:"mongo"`
	Database            DatabaseConfig `mapstructure:"db"`
	Redis               RedisConfig    `mapstructure:"redis"`
	Kafka               KafkaConfig    `mapstructure:"kafka"`
	Auth                AuthConfig     `mapstructure:"auth"`
	NotificationService ServiceConfig  `mapstructure:"notification_service"`
	Log                 LogConfig      `mapstructure:"log"`
	Features            FeatureFlags   `mapstructure:"features"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the persistence backend: mongo, postgres or memory.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type DatabaseConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	Name         string        `mapstructure:"name"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	OrdersTopic   string   `mapstructure:"orders_topic"`
	PaymentsTopic string   `mapstructure:"payments_topic"`
	ConsumerGroup string   `mapstructure:"consumer_group"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type ServiceConfig struct {
	BaseURL string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	APIKey  string        `mapstructure:"api_key"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type FeatureFlags struct {
	EnableOrderCaching  bool `mapstructure:"enable_order_caching"`
	EnableOrderEvents   bool `mapstructure:"enable_order_events"`
	EnablePaymentEvents bool `mapstructure:"enable_payment_events"`
	EnableNotifications bool `mapstructure:"enable_notifications"`
	// ServerSidePricing re-prices order lines from the catalog instead of
	// trusting the price the client sent.
	ServerSidePricing bool `mapstructure:"server_side_pricing"`
}

var defaults = map[string]interface{}{
	"server.port":             8082,
	"server.read_timeout":     30 * time.Second,
	"server.write_timeout":    30 * time.Second,
	"server.shutdown_timeout": 30 * time.Second,

	"store.driver": "mongo",

	"mongo.uri":             "mongodb://localhost:27017",
	"mongo.database":        "acme_storefront",
	"mongo.connect_timeout": 10 * time.Second,

	"db.host":           "localhost",
	"db.port":           5432,
	"db.user":           "acme",
	"db.password":       "acme",
	"db.name":           "acme_storefront",
	"db.sslmode":        "disable",
	"db.max_open_conns": 25,
	"db.max_idle_conns": 5,
	"db.max_lifetime":   5 * time.Minute,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,
	"redis.ttl":      5 * time.Minute,

	"kafka.brokers":        []string{"localhost:9092"},
	"kafka.orders_topic":   "storefront.orders",
	"kafka.payments_topic": "payments.events",
	"kafka.consumer_group": "storefront-service",

	"auth.jwt_secret": "change-me",
	"auth.token_ttl":  30 * 24 * time.Hour,

	"notification_service.url":     "http://localhost:8085",
	"notification_service.timeout": 10 * time.Second,
	"notification_service.api_key": "",

	"log.level":    "info",
	"log.encoding": "json",

	"features.enable_order_caching":  false,
	"features.enable_order_events":   false,
	"features.enable_payment_events": false,
	"features.enable_notifications":  false,
	"features.server_side_pricing":   false,
}

// Load reads configuration from the optional YAML file at path and from the
// environment. Environment variables win over the file; the file wins over
// the defaults. Keys map to variables as SECTION_KEY, e.g. SERVER_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "mongo", "postgres", "memory":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}

	return nil
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
