package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig
	DynamoDB    DynamoDBConfig
	Redis       RedisConfig
	JWT         JWTConfig
	OTP         OTPConfig
	Eligibility EligibilityConfig
	Order       OrderConfig
	Workflow    WorkflowConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey    string
	AccessExpiry time.Duration
}

type OTPConfig struct {
	Length         int
	Expiry         time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
}

type EligibilityConfig struct {
	// MinIncome is the monthly income floor; below it a profile is
	// rejected outright.
	MinIncome int64
	// IncomeMultiple and MaxAmount bound the sanctioned amount.
	IncomeMultiple int64
	MaxAmount      int64
	TenureDays     int
	// Validity is how long an eligible verdict is honoured before the
	// customer must re-qualify through the profile form.
	Validity time.Duration
}

type OrderConfig struct {
	// QRBaseURL is the onboarding entry point the QR payload points at.
	QRBaseURL string
}

type WorkflowConfig struct {
	// AdvanceDelay is the pause between a needs-profile verdict and the
	// move into the profile form.
	AdvanceDelay time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "ap-south-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "EligifyTable"),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SecretKey:    getEnv("JWT_SECRET_KEY", ""),
			AccessExpiry: getEnvAsDuration("JWT_ACCESS_EXPIRY", 12*time.Hour),
		},
		OTP: OTPConfig{
			Length:         getEnvAsInt("OTP_LENGTH", 6),
			Expiry:         getEnvAsDuration("OTP_EXPIRY", 10*time.Minute),
			MaxAttempts:    getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
			ResendCooldown: getEnvAsDuration("OTP_RESEND_COOLDOWN", 60*time.Second),
		},
		Eligibility: EligibilityConfig{
			MinIncome:      getEnvAsInt64("ELIGIBILITY_MIN_INCOME", 12000),
			IncomeMultiple: getEnvAsInt64("ELIGIBILITY_INCOME_MULTIPLE", 4),
			MaxAmount:      getEnvAsInt64("ELIGIBILITY_MAX_AMOUNT", 500000),
			TenureDays:     getEnvAsInt("ELIGIBILITY_TENURE_DAYS", 30),
			Validity:       getEnvAsDuration("ELIGIBILITY_VALIDITY", 90*24*time.Hour),
		},
		Order: OrderConfig{
			QRBaseURL: getEnv("ORDER_QR_BASE_URL", "https://onboard.eligify.in/apply"),
		},
		Workflow: WorkflowConfig{
			AdvanceDelay: getEnvAsDuration("WORKFLOW_ADVANCE_DELAY", 1500*time.Millisecond),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	if len(cfg.JWT.SecretKey) < 32 {
		return nil, fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes (256 bits)")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
