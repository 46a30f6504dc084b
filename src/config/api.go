package config

import "gorm.io/gorm"

// APIConfig holds the read-only status API configuration.
type APIConfig struct {
	ListenAddr     string
	JWTSecret      string
	AllowedOrigins []string
	RateLimit      int
	Enabled        bool
}

// LoadAPIConfig loads API configuration.
func LoadAPIConfig(db *gorm.DB) APIConfig {
	origins := parseCSV(GetSetting("api_allowed_origins", "API_ALLOWED_ORIGINS", ""))
	return APIConfig{
		ListenAddr:     GetSetting("api_listen_addr", "API_LISTEN_ADDR", ":8080"),
		JWTSecret:      GetSetting("jwt_secret", "JWT_SECRET", ""),
		AllowedOrigins: origins,
		RateLimit:      getIntSetting("api_rate_limit_per_minute", "API_RATE_LIMIT", 60),
		Enabled:        getBoolSetting("enable_api", "ENABLE_API", false),
	}
}
