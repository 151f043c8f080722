package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
// 设计说明：使用Viper管理配置，支持YAML文件、环境变量覆盖
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Cart     CartConfig     `mapstructure:"cart"`
	Order    OrderConfig    `mapstructure:"order"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"` // debug | release | test
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // mysql | postgres
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	Charset         string        `mapstructure:"charset"`
	ParseTime       bool          `mapstructure:"parse_time"`
	Loc             string        `mapstructure:"loc"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN 生成连接字符串
// MySQL格式：user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=UTC
// PostgreSQL格式：host=... port=... user=... password=... dbname=... sslmode=disable TimeZone=UTC
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		sslmode := d.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			d.Host, d.Port, d.User, d.Password, d.DBName, sslmode)
	}
	// URL编码loc参数
	loc := url.QueryEscape(d.Loc)
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.Charset, d.ParseTime, loc)
}

type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr 返回Redis地址
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig 只用于校验外部认证服务签发的Token
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	Expire time.Duration `mapstructure:"expire"` // 仅本地调试签发Token时使用
}

type LogConfig struct {
	Level        string `mapstructure:"level"`  // debug | info | warn | error
	Format       string `mapstructure:"format"` // console | json
	Output       string `mapstructure:"output"` // stdout | stderr | /path/to/file
	EnableCaller bool   `mapstructure:"enable_caller"`
}

// CartConfig 购物车配置
type CartConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`            // 购物车有效期
	SweepInterval time.Duration `mapstructure:"sweep_interval"` // 过期清理间隔
	SweepBatch    int           `mapstructure:"sweep_batch"`
}

// OrderConfig 订单配置
type OrderConfig struct {
	HoldTTL time.Duration `mapstructure:"hold_ttl"` // 未支付订单保留占用的时长
}

// WebhookConfig 支付回调与任务队列配置
type WebhookConfig struct {
	Secret            string        `mapstructure:"secret"`
	Tolerance         time.Duration `mapstructure:"tolerance"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	Workers           int           `mapstructure:"workers"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	BatchSize         int           `mapstructure:"batch_size"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
}

// PaymentConfig 支付网关配置
type PaymentConfig struct {
	Mode          string        `mapstructure:"mode"` // 目前只支持mock
	CheckoutURL   string        `mapstructure:"checkout_url"`
	RefundTimeout time.Duration `mapstructure:"refund_timeout"` // 退款Saga整体超时
}

// LedgerConfig 库存流水导出配置
type LedgerConfig struct {
	ExportPageSize int           `mapstructure:"export_page_size"`
	SettleWindow   time.Duration `mapstructure:"settle_window"`
}

type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type KafkaConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Brokers       []string      `mapstructure:"brokers"`
	Topic         string        `mapstructure:"topic"`
	RelayInterval time.Duration `mapstructure:"relay_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load 加载配置文件
// 支持：
// 1. 默认加载config/config.yaml
// 2. 通过环境变量STOREFRONT_ENV指定环境（如config.prod.yaml）
// 3. 环境变量覆盖（如STOREFRONT_DATABASE_PASSWORD）
func Load() (*Config, error) {
	v := viper.New()

	// 设置配置文件路径
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	// 环境变量绑定（STOREFRONT_DATABASE_PASSWORD → database.password）
	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// 环境特定配置（如config.prod.yaml）
	if env := v.GetString("env"); env != "" {
		v.SetConfigName("config." + env)
	}

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return unmarshal(v)
}

// LoadFile 从指定文件加载配置(测试和命令行参数使用)
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults 默认值
// 注册默认值后AutomaticEnv才能覆盖配置文件中缺失的键
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parse_time", true)
	v.SetDefault("database.loc", "UTC")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.pool_size", 20)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("cart.ttl", 30*time.Minute)
	v.SetDefault("cart.sweep_interval", time.Minute)
	v.SetDefault("cart.sweep_batch", 100)
	v.SetDefault("order.hold_ttl", 24*time.Hour)

	v.SetDefault("webhook.tolerance", 5*time.Minute)
	v.SetDefault("webhook.max_attempts", 8)
	v.SetDefault("webhook.backoff_initial", 2*time.Second)
	v.SetDefault("webhook.backoff_max", 10*time.Minute)
	v.SetDefault("webhook.workers", 4)
	v.SetDefault("webhook.poll_interval", time.Second)
	v.SetDefault("webhook.batch_size", 50)
	v.SetDefault("webhook.visibility_timeout", 5*time.Minute)

	v.SetDefault("jwt.issuer", "storefront-auth")
	v.SetDefault("jwt.expire", 2*time.Hour)

	v.SetDefault("payment.mode", "mock")
	v.SetDefault("payment.refund_timeout", 30*time.Second)

	v.SetDefault("ledger.export_page_size", 500)
	v.SetDefault("ledger.settle_window", 2*time.Second)

	v.SetDefault("rabbitmq.exchange", "storefront.events")

	v.SetDefault("kafka.topic", "storefront.ledger")
	v.SetDefault("kafka.relay_interval", 5*time.Second)
	v.SetDefault("kafka.batch_size", 200)

	v.SetDefault("tracing.service_name", "storefront")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// validate 配置校验
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("无效的服务端口: %d", cfg.Server.Port)
	}

	if cfg.Database.Driver != "mysql" && cfg.Database.Driver != "postgres" {
		return fmt.Errorf("不支持的数据库驱动: %s", cfg.Database.Driver)
	}

	if cfg.JWT.Secret == "your-secret-key-change-in-production" && cfg.Server.Mode == "release" {
		return fmt.Errorf("生产环境必须修改JWT密钥")
	}

	if cfg.Webhook.Secret == "" {
		return fmt.Errorf("必须配置webhook.secret")
	}

	if cfg.Webhook.MaxAttempts <= 0 || cfg.Webhook.Workers <= 0 {
		return fmt.Errorf("webhook.max_attempts和webhook.workers必须大于0")
	}

	if cfg.Cart.TTL <= 0 {
		return fmt.Errorf("无效的购物车有效期: %s", cfg.Cart.TTL)
	}

	if cfg.Payment.Mode != "mock" {
		return fmt.Errorf("不支持的支付模式: %s", cfg.Payment.Mode)
	}

	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("启用Kafka时必须配置kafka.brokers")
	}

	return nil
}
