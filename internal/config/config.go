package config

import "time"

type Config struct {
	Service   *ServiceConfig
	Postgres  *PostgresConfig
	Redis     *RedisConfig
	SMTP      *SMTPConfig
	Auth      *AuthConfig
	Worker    *WorkerConfig
	Logger    *LoggerConfig
	Tracer    *TracerConfig
	RateLimit *RateLimitConfig
}

type ServiceConfig struct {
	Name string
	Env  string
	Addr string
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	From     string
	// Operator is the mailbox contact-form submissions are relayed to.
	Operator string
}

type AuthConfig struct {
	Secret        string
	AdminEmail    string
	AdminPassword string
	AdminName     string
	VisitorTTL    time.Duration
	AdminTTL      time.Duration
}

type WorkerConfig struct {
	EventGroup string
}

type LoggerConfig struct {
	Level  string
	Format string
}

type TracerConfig struct {
	Address string
}

type RateLimitConfig struct {
	PerMinute int
	Burst     int
}
