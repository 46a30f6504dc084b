package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/obrc/blacklist/src/data"
	"gorm.io/gorm"
)

// Base contains common configuration fields
type Base struct {
	Token    string
	GuildID  string
	MySQLDSN string
}

// LoadBase loads common configuration (discord token, guild ID, MySQL DSN)
func LoadBase(db *gorm.DB) Base {
	if db != nil {
		if err := data.LoadSettings(db); err != nil {
			log.Printf("config: settings table unavailable, using environment: %v", err)
		}
	}

	dsn, err := data.GetMySQLDSN()
	if err != nil {
		log.Printf("config: %v", err)
	}

	return Base{
		Token:    GetSetting("discord_token", "DISCORD_TOKEN", os.Getenv("BOT_KEY")),
		GuildID:  GetSetting("guild_id", "GUILD_ID", ""),
		MySQLDSN: dsn,
	}
}

// GetSetting retrieves a setting with env fallback
func GetSetting(name, envKey, defaultValue string) string {
	val := data.GetSetting(name)
	if val == "" && envKey != "" {
		val = os.Getenv(envKey)
	}
	if val == "" {
		val = defaultValue
	}
	return strings.TrimSpace(val)
}

func getBoolSetting(settingKey, envKey string, defaultValue bool) bool {
	if v := data.GetSetting(settingKey); v != "" {
		return parseBoolDefault(v, defaultValue)
	}
	if envKey != "" {
		if v := os.Getenv(envKey); v != "" {
			return parseBoolDefault(v, defaultValue)
		}
	}
	return defaultValue
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// getIntSetting accepts positive integers only.
func getIntSetting(settingKey, envKey string, defaultValue int) int {
	raw := GetSetting(settingKey, envKey, "")
	if raw == "" {
		return defaultValue
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	log.Printf("config: ignoring invalid %s=%q", settingKey, raw)
	return defaultValue
}

// getDurationSetting reads an integer count of unit.
func getDurationSetting(settingKey, envKey string, unit time.Duration, defaultValue time.Duration) time.Duration {
	n := getIntSetting(settingKey, envKey, 0)
	if n == 0 {
		return defaultValue
	}
	return time.Duration(n) * unit
}

func parseCSV(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == ' '
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
