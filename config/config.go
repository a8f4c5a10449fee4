package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode     string `mapstructure:"mode"`
	Dotenv   string `mapstructure:"dotenv"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host              string `mapstructure:"host"`
			Password          string `mapstructure:"password"`
			Port              string `mapstructure:"port"`
			Username          string `mapstructure:"username"`
			DB                string `mapstructure:"db"`
			SSLMODE           string `mapstructure:"SSLMODE"`
			MAXCONWAITINGTIME int    `mapstructure:"MAXCONWAITINGTIME"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort      string        `mapstructure:"HTTPPort"`
		Timeout       time.Duration `mapstructure:"HTTPTimeout"`
		BaseURL       string        `mapstructure:"baseURL"`
		SecureCookies bool          `mapstructure:"secureCookies"`
		// AllowedOrigins may call the JSON API from a browser.
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
	} `mapstructure:"server"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	OAuth     OAuthConfig     `mapstructure:"oauth"`
	Mail      MailConfig      `mapstructure:"mail"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

type JWTConfig struct {
	SecretKey        string        `mapstructure:"secretKey"`
	Issuer           string        `mapstructure:"issuer"`
	Audience         string        `mapstructure:"audience"`
	AccessTokenTTL   time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL  time.Duration `mapstructure:"refreshTokenTTL"`
	PasswordResetTTL time.Duration `mapstructure:"passwordResetTTL"`
}

type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"useSSL"`
	PublicURL string `mapstructure:"publicURL"`
}

type CacheConfig struct {
	CityTTL         time.Duration `mapstructure:"cityTTL"`
	CleanupInterval time.Duration `mapstructure:"cleanupInterval"`
}

type OAuthConfig struct {
	SessionSecret string `mapstructure:"sessionSecret"`
	Google        struct {
		ClientID     string `mapstructure:"clientID"`
		ClientSecret string `mapstructure:"clientSecret"`
	} `mapstructure:"google"`
}

type MailConfig struct {
	From string `mapstructure:"from"`
}

type RateLimitConfig struct {
	AuthRequests int           `mapstructure:"authRequests"`
	AuthWindow   time.Duration `mapstructure:"authWindow"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// KONOMADS_JWT_SECRETKEY overrides jwt.secretKey, etc.
	v.SetEnvPrefix("konomads")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if config.JWT.SecretKey == "" {
		return Config{}, fmt.Errorf("jwt.secretKey must be set")
	}
	fmt.Println("Successfully loaded app configs...")
	return config, nil
}
