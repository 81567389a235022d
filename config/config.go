// Ininicializing common application configuration
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "REMINDER"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Rabbit   RabbitConfig   `mapstructure:"rabbit"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	WhatsApp WhatsAppConfig `mapstructure:"whatsapp"`
	Reminder ReminderConfig `mapstructure:"reminder"`
}

type ServerConfig struct {
	AppVersion   string        `mapstructure:"app_version"`
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port" validate:"required"`
	Timeout      time.Duration `mapstructure:"timeout"`
	Idle_timeout time.Duration `mapstructure:"idle_timeout"`
	Env          string        `mapstructure:"environment"`
	Mode         string        `mapstructure:"mode" validate:"oneof=debug release test"`
	LogLevel     string        `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host" validate:"required"`
	Port            int           `mapstructure:"port" validate:"gt=0,lt=65536"`
	User            string        `mapstructure:"user" validate:"required"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname" validate:"required"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`

	// Настройки пула соединений
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

type RabbitConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	URL       string `mapstructure:"url"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	QueueName string `mapstructure:"queue_name" validate:"required_if=Enabled true"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers" validate:"required_if=Enabled true"`
	Topic   string   `mapstructure:"topic" validate:"required_if=Enabled true"`
	GroupID string   `mapstructure:"group_id"`
}

type WhatsAppConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	APIKey         string        `mapstructure:"api_key"`
	Sender         string        `mapstructure:"sender"`
	TemplateName   string        `mapstructure:"template_name" validate:"required"`
	TemplateHeader string        `mapstructure:"template_header"` // empty - header omitted
	Language       string        `mapstructure:"language" validate:"required"`
	Timeout        time.Duration `mapstructure:"timeout"` // 0 - transport defaults
}

type ReminderConfig struct {
	// change feed source: "postgres" or "kafka"
	FeedSource         string        `mapstructure:"feed_source" validate:"oneof=postgres kafka"`
	QueueSize          int           `mapstructure:"queue_size" validate:"gt=0"`
	SweepInterval      time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	PruneInterval      time.Duration `mapstructure:"prune_interval" validate:"gt=0"`
	LedgerRetention    time.Duration `mapstructure:"ledger_retention" validate:"gt=0"`
	DefaultCountryCode string        `mapstructure:"default_country_code" validate:"required,number"`
	Timezone           string        `mapstructure:"timezone" validate:"required"`
	ScheduledLayout    string        `mapstructure:"scheduled_layout" validate:"required"`
	DueLayout          string        `mapstructure:"due_layout" validate:"required"`
	AutoStart          bool          `mapstructure:"auto_start"`
}

func LoadConfig() (*viper.Viper, error) {

	viperInstance := viper.New()

	viperInstance.AddConfigPath("./config")
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	setDefaults(viperInstance)

	viperInstance.SetEnvPrefix(envPrefix)
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.AutomaticEnv()

	err := viperInstance.ReadInConfig()
	if err != nil {
		// env + defaults are enough to run
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {

	var c Config

	err := v.Unmarshal(&c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := time.LoadLocation(c.Reminder.Timezone); err != nil {
		return fmt.Errorf("invalid config: reminder.timezone: %w", err)
	}
	if c.Reminder.FeedSource == "kafka" && !c.Kafka.Enabled {
		return fmt.Errorf("invalid config: reminder.feed_source is kafka but kafka is disabled")
	}
	return nil
}

// RabbitURL returns the explicit URL or builds it from parts.
func (c *Config) RabbitURL() string {
	if c.Rabbit.URL != "" {
		return c.Rabbit.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.Rabbit.Username,
		c.Rabbit.Password,
		c.Rabbit.Host,
		c.Rabbit.Port)
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.app_version", "1.0.0")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.log_level", "info")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "reminder_user")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "tasks")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "reminder:ledger")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	// RabbitMQ defaults
	v.SetDefault("rabbit.enabled", false)
	v.SetDefault("rabbit.url", "")
	v.SetDefault("rabbit.host", "localhost")
	v.SetDefault("rabbit.port", 5672)
	v.SetDefault("rabbit.username", "guest")
	v.SetDefault("rabbit.password", "guest")
	v.SetDefault("rabbit.queue_name", "reminder_events")

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "task-changes")
	v.SetDefault("kafka.group_id", "reminder-scheduler")

	// WhatsApp gateway defaults
	v.SetDefault("whatsapp.base_url", "https://api.infobip.com/whatsapp/1")
	v.SetDefault("whatsapp.api_key", "")
	v.SetDefault("whatsapp.sender", "")
	v.SetDefault("whatsapp.timeout", time.Duration(0))
	v.SetDefault("whatsapp.template_name", "task_reminder")
	v.SetDefault("whatsapp.template_header", "Task Reminder")
	v.SetDefault("whatsapp.language", "en")

	// Reminder defaults
	v.SetDefault("reminder.feed_source", "postgres")
	v.SetDefault("reminder.queue_size", 256)
	v.SetDefault("reminder.sweep_interval", time.Hour)
	v.SetDefault("reminder.prune_interval", 24*time.Hour)
	v.SetDefault("reminder.ledger_retention", 30*24*time.Hour)
	v.SetDefault("reminder.default_country_code", "91")
	v.SetDefault("reminder.timezone", "Asia/Kolkata")
	v.SetDefault("reminder.scheduled_layout", "02/01/2006")
	v.SetDefault("reminder.due_layout", "02/01/2006")
	v.SetDefault("reminder.auto_start", true)
}
