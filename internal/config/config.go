package config

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   string
	NatsURL        string
	JaegerEndpoint string
	Port           string
	JWTSecret      string

	Gateway  GatewayConfig
	Fees     FeeConfig
	Certs    CertificateConfig
	Storage  StorageConfig
	Plans    map[string]decimal.Decimal
	Currency string
}

type GatewayConfig struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// FeeConfig holds the platform-wide charges used by events in GLOBAL fee mode.
type FeeConfig struct {
	GlobalBaseCharge decimal.Decimal
	DefaultFlatFee   decimal.Decimal
}

type CertificateConfig struct {
	IDPrefix          string
	RenderConcurrency int
	RenderTimeout     time.Duration
}

type StorageConfig struct {
	ArtifactDir   string
	Bucket        string
	R2AccountID   string
	AccessKeyID   string
	SecretKey     string
	PublicBaseURL string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8084")
	v.SetDefault("currency", "INR")
	v.SetDefault("gateway_base_url", "https://api.razorpay.com")
	v.SetDefault("gateway_timeout", "5s")
	v.SetDefault("cert_id_prefix", "SPT")
	v.SetDefault("render_concurrency", 3)
	v.SetDefault("render_timeout", "30s")
	v.SetDefault("artifact_dir", "./artifacts")
	v.SetDefault("global_base_charge", "0")
	v.SetDefault("default_flat_fee", "0")
	v.SetDefault("plans", map[string]string{
		"monthly":     "499",
		"annual":      "4999",
		"coordinator": "2999",
	})
}

// Load reads configuration from the environment and, when path is not empty,
// from a YAML file. Environment variables win over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	plans := make(map[string]decimal.Decimal)
	for id, raw := range v.GetStringMapString("plans") {
		price, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.New("invalid price for plan " + id)
		}
		plans[strings.ToLower(id)] = price
	}

	baseCharge, err := decimal.NewFromString(v.GetString("global_base_charge"))
	if err != nil {
		return nil, errors.New("invalid GLOBAL_BASE_CHARGE")
	}
	flatFee, err := decimal.NewFromString(v.GetString("default_flat_fee"))
	if err != nil {
		return nil, errors.New("invalid DEFAULT_FLAT_FEE")
	}

	return &Config{
		DatabaseURL:    v.GetString("database_url"),
		RedisURL:       v.GetString("redis_url"),
		KafkaBrokers:   v.GetString("kafka_brokers"),
		NatsURL:        v.GetString("nats_url"),
		JaegerEndpoint: v.GetString("jaeger_endpoint"),
		Port:           v.GetString("port"),
		JWTSecret:      v.GetString("jwt_secret"),
		Gateway: GatewayConfig{
			BaseURL:   v.GetString("gateway_base_url"),
			KeyID:     v.GetString("gateway_key_id"),
			KeySecret: v.GetString("gateway_key_secret"),
			Timeout:   v.GetDuration("gateway_timeout"),
		},
		Fees: FeeConfig{
			GlobalBaseCharge: baseCharge,
			DefaultFlatFee:   flatFee,
		},
		Certs: CertificateConfig{
			IDPrefix:          strings.ToUpper(v.GetString("cert_id_prefix")),
			RenderConcurrency: v.GetInt("render_concurrency"),
			RenderTimeout:     v.GetDuration("render_timeout"),
		},
		Storage: StorageConfig{
			ArtifactDir:   v.GetString("artifact_dir"),
			Bucket:        v.GetString("artifact_bucket"),
			R2AccountID:   v.GetString("r2_account_id"),
			AccessKeyID:   v.GetString("r2_access_key_id"),
			SecretKey:     v.GetString("r2_secret_access_key"),
			PublicBaseURL: v.GetString("artifact_public_url"),
		},
		Plans:    plans,
		Currency: v.GetString("currency"),
	}, nil
}

// Validate checks the settings the payment and certificate pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Gateway.KeyID == "" || c.Gateway.KeySecret == "" {
		return errors.New("GATEWAY_KEY_ID and GATEWAY_KEY_SECRET are required")
	}
	if c.Certs.IDPrefix == "" {
		return errors.New("CERT_ID_PREFIX is required")
	}
	if c.Gateway.Timeout <= 0 {
		return errors.New("GATEWAY_TIMEOUT must be positive")
	}
	return nil
}
