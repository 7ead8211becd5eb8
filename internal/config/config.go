package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"acp_dues/internal/config/connections/mongo"
	"acp_dues/internal/config/connections/postgres"
	"acp_dues/internal/config/connections/s3"

	"github.com/joho/godotenv"
)

// Settings holds every value read from the environment. It carries no live
// connections so it can be built in tests.
type Settings struct {
	Port string

	Postgres postgres.ConnectionInfo
	Mongo    mongo.ConnectionInfo
	S3       s3.ConnectionInfo

	JWTSecret       string
	Location        *time.Location
	ReceiptMaxBytes int64
	AssociationName string

	SMTP     SMTPSettings
	WhatsApp WhatsAppSettings

	ReminderConcurrency int

	ImportMaxBytes  int64
	ImportBatchSize int
}

type SMTPSettings struct {
	Enabled bool
	Host    string
	Port    string
	User    string
	Pass    string
	From    string
}

type WhatsAppSettings struct {
	Enabled bool
	SID     string
	Token   string
	From    string
	APIBase string
}

type Config struct {
	Settings
	S3       *s3.S3
	Mongo    *mongo.Mongo
	Postgres *postgres.Postgres
}

// Load reads .env (if present) and the process environment.
func Load() (Settings, error) {
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getenv("APP_TIMEZONE", "UTC"))
	if err != nil {
		return Settings{}, fmt.Errorf("APP_TIMEZONE: %w", err)
	}

	maxBytes, err := strconv.ParseInt(getenv("RECEIPT_MAX_BYTES", "10485760"), 10, 64)
	if err != nil || maxBytes <= 0 {
		return Settings{}, fmt.Errorf("RECEIPT_MAX_BYTES must be a positive integer")
	}

	concurrency, err := strconv.Atoi(getenv("REMINDER_CONCURRENCY", "4"))
	if err != nil || concurrency <= 0 {
		return Settings{}, fmt.Errorf("REMINDER_CONCURRENCY must be a positive integer")
	}

	importMax, err := strconv.ParseInt(getenv("IMPORT_MAX_BYTES", "20971520"), 10, 64)
	if err != nil || importMax <= 0 {
		return Settings{}, fmt.Errorf("IMPORT_MAX_BYTES must be a positive integer")
	}

	batch, err := strconv.Atoi(getenv("IMPORT_BATCH_SIZE", "500"))
	if err != nil || batch <= 0 {
		return Settings{}, fmt.Errorf("IMPORT_BATCH_SIZE must be a positive integer")
	}

	return Settings{
		Port: getenv("SERVER_PORT", "8070"),
		Postgres: postgres.ConnectionInfo{
			Host:     getenv("PG_HOST", "127.0.0.1"),
			Port:     getenv("PG_PORT", "5432"),
			User:     getenv("PG_USER", "root"),
			Password: getenv("PG_PASSWORD", "hello-world"),
			DB:       getenv("PG_DB", "acp_dues"),
			SSLMode:  getenv("PG_SSLMODE", "disable"),
		},
		Mongo: mongo.ConnectionInfo{
			Scheme:     getenv("MONGO_SCHEME", "mongodb"),
			User:       getenv("MONGO_USER", "root"),
			Password:   getenv("MONGO_PASSWORD", "secret"),
			Host:       getenv("MONGO_HOST", "127.0.0.1"),
			Port:       getenv("MONGO_PORT", "27017"),
			DB:         getenv("MONGO_DB", "acp_dues"),
			AuthSource: getenv("MONGO_AUTH_SOURCE", "admin"),
		},
		S3: s3.ConnectionInfo{
			Endpoint:  getenv("AWS_ENDPOINT", "http://localhost:9000"),
			AccessKey: getenv("AWS_ACCESS_KEY_ID", "minioadmin"),
			SecretKey: getenv("AWS_SECRET_ACCESS_KEY", "minioadmin"),
			Region:    getenv("AWS_DEFAULT_REGION", "us-east-1"),
			Bucket:    getenv("AWS_BUCKET", "receipts"),
			UseSSL:    getenv("AWS_USE_SSL", "false") == "true",
		},
		JWTSecret:       getenv("JWT_SECRET", ""),
		Location:        loc,
		ReceiptMaxBytes: maxBytes,
		AssociationName: getenv("ASSOCIATION_NAME", "Parents Association"),
		SMTP: SMTPSettings{
			Enabled: getenv("SMTP_ENABLED", "false") == "true",
			Host:    getenv("SMTP_HOST", ""),
			Port:    getenv("SMTP_PORT", "587"),
			User:    getenv("SMTP_USER", ""),
			Pass:    getenv("SMTP_PASS", ""),
			From:    getenv("SMTP_FROM", ""),
		},
		WhatsApp: WhatsAppSettings{
			Enabled: getenv("WHATSAPP_ENABLED", "false") == "true",
			SID:     getenv("TWILIO_SID", ""),
			Token:   getenv("TWILIO_TOKEN", ""),
			From:    getenv("TWILIO_WA_FROM", ""),
			APIBase: getenv("TWILIO_API_BASE", "https://api.twilio.com"),
		},
		ReminderConcurrency: concurrency,
		ImportMaxBytes:      importMax,
		ImportBatchSize:     batch,
	}, nil
}

// Init opens every backing connection described by s.
func Init(ctx context.Context, s Settings) (*Config, error) {
	s3c, err := s3.NewConnection(s.S3)
	if err != nil {
		return nil, fmt.Errorf("s3 connect: %w", err)
	}

	mg, err := mongo.NewConnection(ctx, s.Mongo)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pg, err := postgres.NewConnection(ctx, s.Postgres)
	if err != nil {
		_ = mg.Close(ctx)
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	return &Config{
		Settings: s,
		S3:       s3c,
		Mongo:    mg,
		Postgres: pg,
	}, nil
}

func (c *Config) CheckConnections(ctx context.Context) error {
	var errs []error

	if c.Postgres == nil || c.Postgres.Pool == nil {
		errs = append(errs, errors.New("postgres not initialized"))
	} else if err := c.Postgres.Pool.Ping(ctx); err != nil {
		errs = append(errs, fmt.Errorf("postgres ping failed: %w", err))
	}

	if !c.Mongo.Ready() {
		errs = append(errs, errors.New("mongo not initialized"))
	} else if err := c.Mongo.Client.Ping(ctx, nil); err != nil {
		errs = append(errs, fmt.Errorf("mongo ping failed: %w", err))
	}

	if c.S3 == nil || c.S3.Client == nil {
		errs = append(errs, errors.New("s3 not initialized"))
	} else if ok, err := c.S3.Client.BucketExists(ctx, c.S3.Bucket); err != nil {
		errs = append(errs, fmt.Errorf("s3 bucket check failed: %w", err))
	} else if !ok {
		errs = append(errs, fmt.Errorf("s3 bucket %q not found", c.S3.Bucket))
	}

	return errors.Join(errs...)
}

func (c *Config) Close(ctx context.Context) {
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	_ = c.Mongo.Close(ctx)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
