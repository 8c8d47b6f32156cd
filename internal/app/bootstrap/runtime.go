package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/payconiq-go/cmd/mainconfig"
	appconfig "github.com/wolfman30/payconiq-go/internal/config"
	"github.com/wolfman30/payconiq-go/internal/export"
	"github.com/wolfman30/payconiq-go/internal/ledger"
	"github.com/wolfman30/payconiq-go/internal/observability/metrics"
	"github.com/wolfman30/payconiq-go/pkg/logging"
	"github.com/wolfman30/payconiq-go/pkg/payconiq"
)

// BuildPayconiqClient returns a client for the configured environment. An
// explicit PAYCONIQ_ENDPOINT wins over the environment's endpoint.
func BuildPayconiqClient(cfg *appconfig.Config, logger *logging.Logger, reg prometheus.Registerer) *payconiq.Client {
	if logger == nil {
		logger = logging.Default()
	}
	client := payconiq.New(cfg.PayconiqAPIKey, payconiq.Environment(cfg.PayconiqEnvironment)).
		WithLogger(logger).
		WithMetrics(metrics.NewClientMetrics(reg))
	if endpoint := strings.TrimSpace(cfg.PayconiqEndpoint); endpoint != "" {
		client.SetEndpoint(endpoint)
	}
	return client
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || !cfg.LedgerEnabled() {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildLedger returns the payment ledger when Redis is available.
func BuildLedger(redisClient *redis.Client, cfg *appconfig.Config) *ledger.RedisLedger {
	if redisClient == nil {
		return nil
	}
	return ledger.NewRedisLedger(redisClient, cfg.LedgerTTL)
}

// BuildExporter wires the S3 exporter. It returns a disabled exporter when no
// bucket is configured.
func BuildExporter(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*export.S3Exporter, error) {
	if strings.TrimSpace(cfg.ExportS3Bucket) == "" {
		return export.NewS3Exporter(nil, "", cfg.ExportS3Prefix, logger), nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return export.NewS3Exporter(mainconfig.NewS3Client(awsCfg, cfg), cfg.ExportS3Bucket, cfg.ExportS3Prefix, logger), nil
}
