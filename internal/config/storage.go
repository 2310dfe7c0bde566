package config

// StorageConfig selects where activity attachments are written.
// Driver is "disk" (default) or "s3".
type StorageConfig struct {
	Driver        string
	DiskDir       string
	PublicBaseURL string
	MaxUploadMB   int
	S3            S3Config
}

// S3Config carries bucket settings for the s3 driver.  Empty keys fall
// back to the default AWS credential chain.
type S3Config struct {
	Bucket           string
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	CloudFrontDomain string
}

func LoadStorageConfig() StorageConfig {
	return StorageConfig{
		Driver:        envStr("STORAGE_DRIVER", "disk"),
		DiskDir:       envStr("STORAGE_DIR", "uploads"),
		PublicBaseURL: envStr("STORAGE_PUBLIC_URL", "/uploads"),
		MaxUploadMB:   envInt("STORAGE_MAX_UPLOAD_MB", 10),
		S3: S3Config{
			Bucket:           envStr("S3_BUCKET", ""),
			Region:           envStr("S3_REGION", "us-east-1"),
			AccessKeyID:      envStr("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey:  envStr("S3_SECRET_ACCESS_KEY", ""),
			CloudFrontDomain: envStr("S3_CLOUDFRONT_DOMAIN", ""),
		},
	}
}
