package persist

import (
	"context"
	"log/slog"
	"time"

	"github.com/JonMunkholm/qareports/internal/blob"
)

// DefaultBucket is the remote bucket used when none is configured.
const DefaultBucket = "qa-reports"

// RemoteConfig is the explicit remote-tier configuration, passed once at
// startup.
type RemoteConfig struct {
	Endpoint  string
	Key       string
	Secret    string
	Bucket    string
	Region    string
	Enabled   bool
	PathStyle bool
	Timeout   time.Duration
}

// Active reports whether remote sync should run. A disabled flag or a
// missing endpoint or key means local-only operation.
func (c RemoteConfig) Active() bool {
	return c.Enabled && c.Endpoint != "" && c.Key != ""
}

// NewRemote builds the remote store for cfg. It returns a nil store and no
// error when remote sync is not active.
func NewRemote(ctx context.Context, cfg RemoteConfig) (blob.Store, error) {
	if !cfg.Active() {
		slog.Info("remote sync disabled, running local-only",
			"enabled", cfg.Enabled,
			"endpoint_set", cfg.Endpoint != "",
			"key_set", cfg.Key != "",
		)
		return nil, nil
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	store, err := blob.NewS3(ctx, blob.S3Config{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		Bucket:          bucket,
		AccessKeyID:     cfg.Key,
		SecretAccessKey: cfg.Secret,
		PathStyle:       cfg.PathStyle,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("remote sync enabled", "endpoint", cfg.Endpoint, "bucket", bucket)
	return store, nil
}
