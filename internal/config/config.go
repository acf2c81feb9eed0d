package config

import (
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort   string `mapstructure:"SERVER_PORT"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	JWTSecret    string `mapstructure:"JWT_SECRET"`
	ClientOrigin string `mapstructure:"CLIENT_ORIGIN"`
	StripeAPIKey string
	Currency     string `mapstructure:"CURRENCY"`

	// SES notification sink
	SESSender string `mapstructure:"SES_SENDER"`
	AWSRegion string `mapstructure:"AWS_REGION"`

	// Driver start window around the estimated time. Production keeps the
	// defaults; staging and tests widen them.
	AssignmentEarlyStart time.Duration `mapstructure:"ASSIGNMENT_EARLY_START"`
	AssignmentLateStart  time.Duration `mapstructure:"ASSIGNMENT_LATE_START"`
}

func LoadConfig(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("CURRENCY", "kwd")
	viper.SetDefault("ASSIGNMENT_EARLY_START", 30*time.Minute)
	viper.SetDefault("ASSIGNMENT_LATE_START", 2*time.Hour)

	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	if err != nil {
		// Allow a missing .env file; everything can come from the environment.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No .env file found.")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")

	return &cfg, nil
}
