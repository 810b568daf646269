package config

import (
	"fmt"
	"log"
	"sync"
	"time"

	"alphagate/lib/api/remote"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Listen struct {
	BindIp string `yaml:"bind_ip" env-default:"0.0.0.0"`
	Port   string `yaml:"port" env-default:"8080"`
	// TrustedProxies are addresses or CIDR prefixes whose forwarding headers are honoured.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type Mongo struct {
	Enabled  bool   `yaml:"enabled" env-default:"false"`
	URI      string `yaml:"uri" env:"MONGO_URI" env-default:""`
	Host     string `yaml:"host" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env-default:"27017"`
	User     string `yaml:"user" env-default:""`
	Password string `yaml:"password" env:"MONGO_PASSWORD" env-default:""`
	Database string `yaml:"database" env-default:"alpha"`
}

type Admin struct {
	JWTSecret         string `yaml:"jwt_secret" env:"ADMIN_JWT_SECRET" env-default:""`
	TokenTTLHours     int    `yaml:"token_ttl_hours" env-default:"8"`
	BootstrapEmail    string `yaml:"bootstrap_email" env:"ADMIN_EMAIL" env-default:""`
	BootstrapPassword string `yaml:"bootstrap_password" env:"ADMIN_PASSWORD" env-default:""`
}

type Captcha struct {
	Backend  string `yaml:"backend" env-default:"memory"`
	Length   int    `yaml:"length" env-default:"5"`
	TTLSec   int    `yaml:"ttl_sec" env-default:"300"`
	GraceSec int    `yaml:"grace_sec" env-default:"2"`
}

type Redis struct {
	Host     string `yaml:"host" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env-default:"0"`
}

type Codes struct {
	Prefix string `yaml:"prefix" env-default:"alpha@"`
}

type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:""`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USER" env-default:""`
	Password string `yaml:"password" env:"SMTP_PASS" env-default:""`
	From     string `yaml:"from" env:"SMTP_FROM" env-default:""`
	FromName string `yaml:"from_name" env-default:"The Alpha Network"`
	StartTLS bool   `yaml:"starttls" env-default:"true"`
}

type Export struct {
	Enabled    bool   `yaml:"enabled" env-default:"false"`
	Schedule   string `yaml:"schedule" env-default:"30 18 * * *"`
	Timezone   string `yaml:"timezone" env-default:"UTC"`
	Dir        string `yaml:"dir" env-default:"exports"`
	RunOnStart bool   `yaml:"run_on_start" env-default:"false"`
}

type Telegram struct {
	Enabled           bool    `yaml:"enabled" env-default:"false"`
	ApiKey            string  `yaml:"api_key" env:"TELEGRAM_API_KEY" env-default:""`
	AdminIds          []int64 `yaml:"admin_ids"`
	DigestIntervalMin int     `yaml:"digest_interval_min" env-default:"60"`
}

type Booking struct {
	Code string `yaml:"code" env:"ALPHA_CODE" env-default:""`
}

type RateLimit struct {
	Enabled bool `yaml:"enabled" env-default:"true"`
}

type Config struct {
	Env       string    `yaml:"env" env-default:"local"`
	Listen    Listen    `yaml:"listen"`
	Storage   string    `yaml:"storage" env-default:"mongo"`
	Mongo     Mongo     `yaml:"mongo"`
	Admin     Admin     `yaml:"admin"`
	Captcha   Captcha   `yaml:"captcha"`
	Redis     Redis     `yaml:"redis"`
	Codes     Codes     `yaml:"codes"`
	SMTP      SMTP      `yaml:"smtp"`
	Export    Export    `yaml:"export"`
	Telegram  Telegram  `yaml:"telegram"`
	Booking   Booking   `yaml:"booking"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

func (c *Captcha) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

func (c *Captcha) Grace() time.Duration {
	return time.Duration(c.GraceSec) * time.Second
}

func (a *Admin) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLHours) * time.Hour
}

// Validate reports settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMongo:
		if !c.Mongo.Enabled {
			return fmt.Errorf("storage is mongo but mongo.enabled is false")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	switch c.Captcha.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unknown captcha backend %q", c.Captcha.Backend)
	}
	if c.Captcha.Length < 4 || c.Captcha.TTLSec <= 0 {
		return fmt.Errorf("captcha length must be at least 4 and ttl positive")
	}
	if c.Admin.JWTSecret == "" && c.Env != "local" {
		return fmt.Errorf("admin.jwt_secret is required")
	}
	if c.Admin.TokenTTLHours <= 0 {
		return fmt.Errorf("admin.token_ttl_hours must be positive")
	}
	if _, err := remote.ParseTrusted(c.Listen.TrustedProxies); err != nil {
		return fmt.Errorf("listen.trusted_proxies: %w", err)
	}
	return nil
}

var instance *Config
var once sync.Once

func MustLoad(path string) *Config {
	var err error
	once.Do(func() {
		instance = &Config{}
		if err = cleanenv.ReadConfig(path, instance); err != nil {
			desc, _ := cleanenv.GetDescription(instance, nil)
			err = fmt.Errorf("config: %s; %s", err, desc)
			instance = nil
			log.Fatal(err)
		}
		if err = instance.Validate(); err != nil {
			log.Fatal(fmt.Errorf("config: %w", err))
		}
	})
	return instance
}

// Load reads the file without the process-wide caching of MustLoad.
func Load(path string) (*Config, error) {
	conf := &Config{}
	if err := cleanenv.ReadConfig(path, conf); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return conf, nil
}
