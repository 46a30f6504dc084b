package data

import (
	"sync"

	"gorm.io/gorm"
)

// Setting is a name/value override stored in the database.
type Setting struct {
	ID     uint   `gorm:"primaryKey"`
	Name   string `gorm:"size:64;uniqueIndex;not null"`
	Value  string `gorm:"type:text;not null"`
	Active bool   `gorm:"not null;default:true"`
}

func (Setting) TableName() string { return "settings" }

var (
	settingsCache map[string]string
	settingsMu    sync.RWMutex
)

// LoadSettings loads all active settings from the database into cache.
func LoadSettings(db *gorm.DB) error {
	if err := db.AutoMigrate(&Setting{}); err != nil {
		return err
	}
	var settings []Setting
	if err := db.Where("active = ?", true).Find(&settings).Error; err != nil {
		return err
	}
	SetSettings(settings)
	return nil
}

// SetSettings replaces the cache.
func SetSettings(settings []Setting) {
	settingsMu.Lock()
	defer settingsMu.Unlock()
	settingsCache = make(map[string]string, len(settings))
	for _, s := range settings {
		settingsCache[s.Name] = s.Value
	}
}

// GetSetting retrieves a setting value from cache (call LoadSettings first)
func GetSetting(name string) string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsCache[name]
}
