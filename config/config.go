package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configFileEnvName = "KEYSHOP_CONFIG_FILE"
	envPrefix         = "KEYSHOP"
)

type HTTP struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CloseTimeout   time.Duration `mapstructure:"close_timeout"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	MaxUploadSize  int64         `mapstructure:"max_upload_size"`
}

type Storage struct {
	Driver         string `mapstructure:"driver"`
	DSN            string `mapstructure:"dsn"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

type Session struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
	CookieName    string        `mapstructure:"cookie_name"`
	SecureCookie  bool          `mapstructure:"secure_cookie"`
}

type Auth struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	Issuer     string        `mapstructure:"issuer"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

type Mail struct {
	// An empty Host logs notifications instead of sending them.
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	From            string        `mapstructure:"from"`
	TLSPolicy       string        `mapstructure:"tls_policy"`
	Timeout         time.Duration `mapstructure:"timeout"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown"`
}

type Checkout struct {
	Subject       string        `mapstructure:"subject"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
	FeaturedLimit int           `mapstructure:"featured_limit"`
}

type Delivery struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	ClaimTimeout  time.Duration `mapstructure:"claim_timeout"`
}

type Media struct {
	Root      string `mapstructure:"root"`
	URLPrefix string `mapstructure:"url_prefix"`
}

type topics struct {
	Purchases string `mapstructure:"purchases"`
}

type brokerTLS struct {
	Enabled bool   `mapstructure:"enabled"`
	CA      string `mapstructure:"ca"`
	Cert    string `mapstructure:"cert"`
	Key     string `mapstructure:"key"`
}

type Broker struct {
	Enabled            bool      `mapstructure:"enabled"`
	SeedBrokers        []string  `mapstructure:"seed_brokers"`
	SchemaRegistryURLs []string  `mapstructure:"schema_registry_urls"`
	Topics             topics    `mapstructure:"topics"`
	Partitions         int32     `mapstructure:"partitions"`
	ReplicationFactor  int16     `mapstructure:"replication_factor"`
	TLS                brokerTLS `mapstructure:"tls"`
}

type Config struct {
	LogLevel slog.Level `mapstructure:"log_level"`
	HTTP     HTTP       `mapstructure:"http"`
	Storage  Storage    `mapstructure:"storage"`
	Session  Session    `mapstructure:"session"`
	Auth     Auth       `mapstructure:"auth"`
	Mail     Mail       `mapstructure:"mail"`
	Checkout Checkout   `mapstructure:"checkout"`
	Delivery Delivery   `mapstructure:"delivery"`
	Media    Media      `mapstructure:"media"`
	Broker   Broker     `mapstructure:"broker"`
}

// Load reads the config file named by the --config flag or
// KEYSHOP_CONFIG_FILE. Environment variables override file values, e.g.
// KEYSHOP_STORAGE_DSN for storage.dsn.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		die(err)
	}

	cfg, err := load(viper.New(), getConfigFilepath())
	if err != nil {
		die(err)
	}
	return cfg
}

func load(v *viper.Viper, path string) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	err := v.UnmarshalExact(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every key so that env overrides apply even when
// the file omits it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", 15*time.Second)
	v.SetDefault("http.close_timeout", 10*time.Second)
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.max_upload_size", 8<<20)

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.dsn", "keyshop.db")
	v.SetDefault("storage.migrate_on_start", true)

	v.SetDefault("session.redis_addr", "localhost:6379")
	v.SetDefault("session.redis_password", "")
	v.SetDefault("session.redis_db", 0)
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cookie_name", "keyshop_session")
	v.SetDefault("session.secure_cookie", false)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "keyshop")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("mail.host", "")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.username", "")
	v.SetDefault("mail.password", "")
	v.SetDefault("mail.from", "shop@localhost")
	v.SetDefault("mail.tls_policy", "mandatory")
	v.SetDefault("mail.timeout", 10*time.Second)
	v.SetDefault("mail.breaker_failures", 5)
	v.SetDefault("mail.breaker_cooldown", 30*time.Second)

	v.SetDefault("checkout.subject", "ProgramStore key")
	v.SetDefault("checkout.send_timeout", 10*time.Second)
	v.SetDefault("checkout.featured_limit", 4)

	v.SetDefault("delivery.poll_interval", 30*time.Second)
	v.SetDefault("delivery.batch_size", 50)
	v.SetDefault("delivery.retry_attempts", 3)
	v.SetDefault("delivery.retry_delay", time.Second)
	v.SetDefault("delivery.max_attempts", 10)
	v.SetDefault("delivery.claim_timeout", 5*time.Minute)

	v.SetDefault("media.root", "media")
	v.SetDefault("media.url_prefix", "/images")

	v.SetDefault("broker.enabled", false)
	v.SetDefault("broker.seed_brokers", []string{})
	v.SetDefault("broker.schema_registry_urls", []string{})
	v.SetDefault("broker.topics.purchases", "purchases")
	v.SetDefault("broker.partitions", 3)
	v.SetDefault("broker.replication_factor", 1)
	v.SetDefault("broker.tls.enabled", false)
	v.SetDefault("broker.tls.ca", "")
	v.SetDefault("broker.tls.cert", "")
	v.SetDefault("broker.tls.key", "")
}

func (c Config) validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	switch c.Storage.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf(
			"storage.driver: unknown driver %q", c.Storage.Driver,
		))
	}
	if c.Delivery.ClaimTimeout <= c.Checkout.SendTimeout {
		errs = append(errs, errors.New(
			"delivery.claim_timeout must exceed checkout.send_timeout",
		))
	}
	if c.Broker.Enabled && len(c.Broker.SeedBrokers) == 0 {
		errs = append(errs, errors.New("broker.seed_brokers is required"))
	}
	if c.Broker.Enabled && len(c.Broker.SchemaRegistryURLs) == 0 {
		errs = append(errs, errors.New("broker.schema_registry_urls is required"))
	}
	return errors.Join(errs...)
}

func getConfigFilepath() string {
	cmdLine := pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	arg := cmdLine.String("config", "/config.yaml", "config file")
	_ = cmdLine.Parse(os.Args[1:])
	env, ok := os.LookupEnv(configFileEnvName)
	if ok {
		return env
	}
	return *arg
}

func die(err error) {
	fmt.Printf("failed to load config file: %v\n", err)
	os.Exit(2)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "******"
}

func (c Config) Print() {
	tamplate := `
	General:
	LogLevel=%q

	HTTP:
	Addr=%q
	RequestTimeout=%s
	CORSOrigins=%q

	Storage:
	Driver=%q
	DSN=%q
	MigrateOnStart=%t

	Session:
	RedisAddr=%q
	RedisPassword=%q
	TTL=%s
	CookieName=%q

	Auth:
	JWTSecret=%q
	Issuer=%q
	TokenTTL=%s

	Mail:
	Host=%q
	Port=%d
	Username=%q
	Password=%q
	From=%q
	TLSPolicy=%q

	Checkout:
	Subject=%q
	SendTimeout=%s

	Delivery:
	PollInterval=%s
	BatchSize=%d
	RetryAttempts=%d
	MaxAttempts=%d
	ClaimTimeout=%s

	Media:
	Root=%q
	URLPrefix=%q

	BrokerConfig:
	Enabled=%t
	SeedBrokers=%q
	SchemaRegistryURLs=%q
	Topics:
		Purchases=%q
	TLS=%t

`
	fmt.Println("Loaded config:")
	fmt.Printf(
		strings.TrimLeft(tamplate, "\n"),
		c.LogLevel,
		c.HTTP.Addr,
		c.HTTP.RequestTimeout,
		c.HTTP.CORSOrigins,
		c.Storage.Driver,
		maskDSN(c.Storage.DSN),
		c.Storage.MigrateOnStart,
		c.Session.RedisAddr,
		mask(c.Session.RedisPassword),
		c.Session.TTL,
		c.Session.CookieName,
		mask(c.Auth.JWTSecret),
		c.Auth.Issuer,
		c.Auth.TokenTTL,
		c.Mail.Host,
		c.Mail.Port,
		c.Mail.Username,
		mask(c.Mail.Password),
		c.Mail.From,
		c.Mail.TLSPolicy,
		c.Checkout.Subject,
		c.Checkout.SendTimeout,
		c.Delivery.PollInterval,
		c.Delivery.BatchSize,
		c.Delivery.RetryAttempts,
		c.Delivery.MaxAttempts,
		c.Delivery.ClaimTimeout,
		c.Media.Root,
		c.Media.URLPrefix,
		c.Broker.Enabled,
		c.Broker.SeedBrokers,
		c.Broker.SchemaRegistryURLs,
		c.Broker.Topics.Purchases,
		c.Broker.TLS.Enabled,
	)
}

// maskDSN hides the password of a URL style DSN.
func maskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	userinfo, host, ok := strings.Cut(rest, "@")
	if !ok {
		return dsn
	}
	user, _, hasPassword := strings.Cut(userinfo, ":")
	if !hasPassword {
		return dsn
	}
	return scheme + "://" + user + ":" + mask("x") + "@" + host
}
