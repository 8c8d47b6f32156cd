package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/wolfman30/payconiq-go/internal/app/bootstrap"
	appconfig "github.com/wolfman30/payconiq-go/internal/config"
	"github.com/wolfman30/payconiq-go/internal/ledger"
	"github.com/wolfman30/payconiq-go/pkg/logging"
	"github.com/wolfman30/payconiq-go/pkg/payconiq"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg    *appconfig.Config
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	logger   *logging.Logger
	client   *payconiq.Client
	redis    *redis.Client
	ledger   *ledger.RedisLedger
	registry *prometheus.Registry
}

func newApp(cfg *appconfig.Config, out, errOut io.Writer) *app {
	return &app{cfg: cfg, out: out, errOut: errOut, now: time.Now}
}

// newRootCmd builds the command tree. The caller closes a once the command
// has run, whether it failed or not.
func newRootCmd(a *app) *cobra.Command {
	cfg := a.cfg

	var (
		env      string
		endpoint string
		apiKey   string
		logLevel string
	)

	root := &cobra.Command{
		Use:           "payconiq",
		Short:         "create, inspect and refund Payconiq payments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("env") {
				a.cfg.PayconiqEnvironment = env
			}
			if cmd.Flags().Changed("endpoint") {
				a.cfg.PayconiqEndpoint = endpoint
			}
			if cmd.Flags().Changed("api-key") {
				a.cfg.PayconiqAPIKey = apiKey
			}
			if cmd.Flags().Changed("log-level") {
				a.cfg.LogLevel = logLevel
			}
			return a.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&env, "env", cfg.PayconiqEnvironment, "payconiq environment: prod or ext")
	flags.StringVar(&endpoint, "endpoint", cfg.PayconiqEndpoint, "override the API base URL")
	flags.StringVar(&apiKey, "api-key", "", "API key (defaults to PAYCONIQ_API_KEY)")
	flags.StringVar(&logLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	root.AddCommand(
		newCreateCmd(a),
		newGetCmd(a),
		newSearchCmd(a),
		newRefundCmd(a),
		newRefundIbanCmd(a),
		newExportCmd(a),
		newReconcileCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	a.logger = logging.NewWithWriter(a.cfg.LogLevel, a.errOut)
	if a.cfg.PayconiqAPIKey == "" {
		return fmt.Errorf("api key required: set PAYCONIQ_API_KEY or --api-key")
	}

	a.registry = prometheus.NewRegistry()
	a.client = bootstrap.BuildPayconiqClient(a.cfg, a.logger, a.registry)

	a.redis = bootstrap.BuildRedisClient(cmd.Context(), a.cfg, a.logger, true)
	a.ledger = bootstrap.BuildLedger(a.redis, a.cfg)
	a.logger.Debug("payconiq cli ready",
		"endpoint", a.client.Endpoint(),
		"ledger", a.ledger != nil,
	)
	return nil
}

// close releases the Redis connection opened by init.
func (a *app) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
