package config

import "gorm.io/gorm"

// ArchiveConfig points transcript archiving at an S3 bucket.
type ArchiveConfig struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string
	Enabled  bool
}

// LoadArchiveConfig loads archive configuration. Archiving is on when a
// bucket is set unless explicitly disabled.
func LoadArchiveConfig(db *gorm.DB) ArchiveConfig {
	bucket := GetSetting("archive_bucket", "ARCHIVE_BUCKET", "")
	return ArchiveConfig{
		Bucket:   bucket,
		Region:   GetSetting("archive_region", "AWS_REGION", ""),
		Prefix:   GetSetting("archive_prefix", "ARCHIVE_PREFIX", "obrc"),
		Endpoint: GetSetting("archive_endpoint", "ARCHIVE_ENDPOINT", ""),
		Enabled:  bucket != "" && getBoolSetting("enable_archive", "ENABLE_ARCHIVE", true),
	}
}
