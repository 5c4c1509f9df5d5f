package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/logging"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/server"
)

// NewServeCmd constructs the `kisan serve` command, which starts the HTTP API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the advisory HTTP API",
		Long: `Start the kisan HTTP server.

Routes under /api/v1 require "Authorization: Bearer $KISAN_API_KEY" when
KISAN_API_KEY is set and are rate limited per client IP (KISAN_RATE_LIMIT,
KISAN_RATE_BURST). /api/health, /api/ready and /metrics are always open.

Each request may run for the full answer budget (retrieval, generation
with retry, simplification and follow-ups). KISAN_REQUEST_TIMEOUT, e.g.
"3m", overrides it.

Examples:
  kisan serve
  kisan serve --port 9090
  KISAN_INDEX=none MODEL_PROVIDER=openai kisan serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if !cmd.Flags().Changed("host") {
				if v := os.Getenv("KISAN_HOST"); v != "" {
					host = v
				}
			}
			if !cmd.Flags().Changed("port") {
				if v, err := strconv.Atoi(os.Getenv("KISAN_PORT")); err == nil && v > 0 {
					port = v
				}
			}

			rt, err := buildRuntime(ctx, log, prometheus.DefaultRegisterer)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer rt.Close()

			requestTimeout := rt.budget
			if v := os.Getenv("KISAN_REQUEST_TIMEOUT"); v != "" {
				d, err := time.ParseDuration(v)
				if err != nil || d <= 0 {
					return fmt.Errorf("serve: invalid KISAN_REQUEST_TIMEOUT %q", v)
				}
				if d < rt.budget {
					log.Warn("request timeout is shorter than the answer budget, slow answers may be cut off",
						slog.Duration("request_timeout", d),
						slog.Duration("answer_budget", rt.budget),
					)
				}
				requestTimeout = d
			}

			rateLimit, _ := strconv.ParseFloat(os.Getenv("KISAN_RATE_LIMIT"), 64)
			rateBurst, _ := strconv.Atoi(os.Getenv("KISAN_RATE_BURST"))

			srv, err := server.New(rt.advisor, &server.Config{
				Host:           host,
				Port:           port,
				Logger:         log,
				Pingers:        rt.pingers,
				RateLimit:      rateLimit,
				RateBurst:      rateBurst,
				APIKey:         os.Getenv("KISAN_API_KEY"),
				RequestTimeout: requestTimeout,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			log.Info("serve starting", slog.String("host", host), slog.Int("port", port))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: KISAN_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: KISAN_PORT)")

	return cmd
}
