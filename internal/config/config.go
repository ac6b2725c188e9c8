/**
 * @description
 * This package handles the configuration management for the ATS transfer
 * service. It uses Viper to read settings from an optional .env file and the
 * environment, and yaml.v3 for the optional carriers file.
 *
 * @dependencies
 * - github.com/spf13/viper: configuration loading and defaults.
 * - gopkg.in/yaml.v3: carriers file decoding.
 */

package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ats/transfer-service/internal/domain"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Built-in carrier ids used when no carriers file is configured.
const (
	CarrierAllianz        = "allianz"
	CarrierAmericanEquity = "american-equity"
)

// Config holds all the configuration variables for the transfer service.
type Config struct {
	ServerPort               string        `mapstructure:"SERVER_PORT"`
	DatabaseURL              string        `mapstructure:"DATABASE_URL"`
	DBAutoMigrate            bool          `mapstructure:"DB_AUTO_MIGRATE"`
	RedisURL                 string        `mapstructure:"REDIS_URL"`
	RedisDedupPrefix         string        `mapstructure:"REDIS_DEDUP_PREFIX"`
	RabbitMQURL              string        `mapstructure:"RABBITMQ_URL"`
	EventsExchange           string        `mapstructure:"EVENTS_EXCHANGE"`
	WebhookSecret            string        `mapstructure:"ATS_WEBHOOK_SECRET"`
	WebhookApplyEnabled      bool          `mapstructure:"WEBHOOK_APPLY_ENABLED"`
	DedupTTL                 time.Duration `mapstructure:"DEDUP_TTL"`
	InternalAPIKey           string        `mapstructure:"INTERNAL_API_KEY"`
	ReassignContractsURL     string        `mapstructure:"REASSIGN_CONTRACTS_URL"`
	CarriersFile             string        `mapstructure:"CARRIERS_FILE"`
	ForwardAPIURLAllianz     string        `mapstructure:"FORWARD_API_URL_ALLIANZ"`
	ForwardAPIURLAE          string        `mapstructure:"FORWARD_API_URL_AE"`
	CarrierTimeout           time.Duration `mapstructure:"CARRIER_TIMEOUT"`
	CarrierConcurrency       int           `mapstructure:"CARRIER_CONCURRENCY"`
	SideEffectPolicy         string        `mapstructure:"SIDE_EFFECT_POLICY"`
	OutboxFlushSchedule      string        `mapstructure:"OUTBOX_FLUSH_SCHEDULE"`
	DedupPurgeSchedule       string        `mapstructure:"DEDUP_PURGE_SCHEDULE"`
	TransferTransitionPolicy string        `mapstructure:"TRANSFER_TRANSITION_POLICY"`

	// Carriers is resolved from CARRIERS_FILE or the FORWARD_API_URL_* keys.
	Carriers []domain.Carrier `mapstructure:"-"`
}

type carriersFile struct {
	Carriers []domain.Carrier `yaml:"carriers"`
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_AUTO_MIGRATE", false)
	viper.SetDefault("REDIS_DEDUP_PREFIX", "ats:webhook:event")
	viper.SetDefault("EVENTS_EXCHANGE", "ats.events")
	viper.SetDefault("WEBHOOK_APPLY_ENABLED", true)
	viper.SetDefault("DEDUP_TTL", "24h")
	viper.SetDefault("CARRIER_TIMEOUT", "10s")
	viper.SetDefault("CARRIER_CONCURRENCY", 8)
	viper.SetDefault("SIDE_EFFECT_POLICY", "log")
	viper.SetDefault("OUTBOX_FLUSH_SCHEDULE", "@every 30s")
	viper.SetDefault("DEDUP_PURGE_SCHEDULE", "@every 10m")
	viper.SetDefault("TRANSFER_TRANSITION_POLICY", "allow_all")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("DB_AUTO_MIGRATE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_DEDUP_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("ATS_WEBHOOK_SECRET")
	_ = viper.BindEnv("WEBHOOK_APPLY_ENABLED")
	_ = viper.BindEnv("DEDUP_TTL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("REASSIGN_CONTRACTS_URL")
	_ = viper.BindEnv("CARRIERS_FILE")
	_ = viper.BindEnv("FORWARD_API_URL_ALLIANZ")
	_ = viper.BindEnv("FORWARD_API_URL_AE")
	_ = viper.BindEnv("CARRIER_TIMEOUT")
	_ = viper.BindEnv("CARRIER_CONCURRENCY")
	_ = viper.BindEnv("SIDE_EFFECT_POLICY")
	_ = viper.BindEnv("OUTBOX_FLUSH_SCHEDULE")
	_ = viper.BindEnv("DEDUP_PURGE_SCHEDULE")
	_ = viper.BindEnv("TRANSFER_TRANSITION_POLICY")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.WebhookSecret = strings.TrimSpace(config.WebhookSecret)
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	config.ReassignContractsURL = strings.TrimSpace(config.ReassignContractsURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)

	if config.DedupTTL <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive DEDUP_TTL; using 24h\" value=%s", config.DedupTTL)
		config.DedupTTL = 24 * time.Hour
	}
	if config.CarrierTimeout <= 0 {
		config.CarrierTimeout = 10 * time.Second
	}
	if config.CarrierConcurrency <= 0 {
		config.CarrierConcurrency = 8
	}

	config.Carriers, err = resolveCarriers(config)
	return
}

// resolveCarriers returns the ordered carrier list. The order decides which
// carrier's response wins when every carrier fails.
func resolveCarriers(config Config) ([]domain.Carrier, error) {
	if file := strings.TrimSpace(config.CarriersFile); file != "" {
		return loadCarriersFile(file)
	}

	var carriers []domain.Carrier
	if url := strings.TrimSpace(config.ForwardAPIURLAllianz); url != "" {
		carriers = append(carriers, domain.Carrier{ID: CarrierAllianz, URL: url})
	}
	if url := strings.TrimSpace(config.ForwardAPIURLAE); url != "" {
		carriers = append(carriers, domain.Carrier{ID: CarrierAmericanEquity, URL: url})
	}
	return carriers, nil
}

func loadCarriersFile(path string) ([]domain.Carrier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read carriers file: %w", err)
	}

	var file carriersFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse carriers file: %w", err)
	}

	seen := make(map[string]struct{}, len(file.Carriers))
	carriers := make([]domain.Carrier, 0, len(file.Carriers))
	for i, carrier := range file.Carriers {
		carrier.ID = strings.TrimSpace(carrier.ID)
		carrier.URL = strings.TrimSpace(carrier.URL)
		if carrier.ID == "" || carrier.URL == "" {
			return nil, fmt.Errorf("carriers file entry %d needs both id and url", i)
		}
		if _, dup := seen[carrier.ID]; dup {
			return nil, fmt.Errorf("carriers file lists %q twice", carrier.ID)
		}
		seen[carrier.ID] = struct{}{}
		carriers = append(carriers, carrier)
	}
	return carriers, nil
}
