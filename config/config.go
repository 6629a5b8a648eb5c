// api/config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Neo4j         DatabaseConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
	Platforms     PlatformsConfiguration
	Provisioning  ProvisioningConfiguration
	Renewal       RenewalConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

// DatabaseConfiguration stores data for database connection
type DatabaseConfiguration struct {
	URI string
}

// RedisConfiguration stores data for Redis connection
type RedisConfiguration struct {
	Addr            string
	DefaultCacheTTL string
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL string
}

// PlatformsConfiguration stores per-vendor smart lock credentials
type PlatformsConfiguration struct {
	TTLock TTLockConfiguration
	Nuki   NukiConfiguration
}

type TTLockConfiguration struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	AccessToken  string
}

type NukiConfiguration struct {
	BaseURL  string
	APIToken string
}

// ProvisioningConfiguration stores passcode issuance policy
type ProvisioningConfiguration struct {
	CodeLength       int
	MaxAttempts      int
	ShortStayDigits  int
	DeliveryLeadTime time.Duration
}

// RenewalConfiguration stores the renewal sweep policy
type RenewalConfiguration struct {
	Lookahead           time.Duration
	CodeExpiryThreshold time.Duration
	JobEnabled          bool
	JobInterval         time.Duration
	JobTimeout          time.Duration
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("neo4j.uri", "bolt://localhost:7687")
	viper.SetDefault("neo4j.maxPoolSize", 50)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("elasticsearch.url", "http://localhost:9200")
	viper.SetDefault("redis.defaultCacheTTL", "10m")
	viper.SetDefault("log.dir", "logging")

	// Vendor platform endpoints; credentials come from the config file or env
	viper.SetDefault("platforms.ttlock.baseUrl", "https://euapi.ttlock.com")
	viper.SetDefault("platforms.nuki.baseUrl", "https://api.nuki.io")
	viper.SetDefault("platforms.requestTimeout", "15s")

	// Passcode issuance policy
	viper.SetDefault("provisioning.codeLength", 6)
	viper.SetDefault("provisioning.maxAttempts", 5)
	viper.SetDefault("provisioning.shortStayDigits", 6)
	viper.SetDefault("provisioning.deliveryLeadTime", "24h")

	// Renewal sweep policy
	viper.SetDefault("renewal.lookahead", "168h")
	viper.SetDefault("renewal.codeExpiryThreshold", "72h")
	viper.SetDefault("renewal.jobEnabled", true)
	viper.SetDefault("renewal.jobInterval", "1h")
	viper.SetDefault("renewal.jobTimeout", "10m")
	viper.SetDefault("renewal.sweepLockTTL", "5m")

	// Violation severities, overridable per deployment
	viper.SetDefault("monitoring.severity.UNKNOWN_ACCESSOR", "HIGH")
	viper.SetDefault("monitoring.severity.EXPIRED_RULE_USED", "MEDIUM")
	viper.SetDefault("monitoring.severity.RULE_SUSPENDED_BUT_USED", "HIGH")
	viper.SetDefault("monitoring.severity.OUTSIDE_TIME_WINDOW", "LOW")
	viper.SetDefault("monitoring.severity.OUTSIDE_WEEKDAY", "LOW")

	viper.SetDefault("ratelimit.requests", 100)
	viper.SetDefault("ratelimit.window", "1m")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
