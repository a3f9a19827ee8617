package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kingrea/callsheet/internal/gateway/stub"
	"github.com/kingrea/callsheet/internal/logging"
)

// ServeStubCmd returns the serve-stub command
func ServeStubCmd() *cobra.Command {
	settings := stub.DefaultSettings()
	var registered, sessions []string
	var logDir string
	cmd := &cobra.Command{
		Use:   "serve-stub",
		Short: "Run a local registration gateway for rehearsals",
		Long: `Run a local stand-in for the registration gateway. Tokens expire after
--ttl so the re-login path can be rehearsed; numbers passed with
--registered are reported as registered, everything else is not.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings.Registered = registered
			settings.Sessions = sessions

			var opts []stub.Option
			if logDir != "" {
				logger, err := logging.New(logDir)
				if err != nil {
					return err
				}
				defer logger.Close()
				opts = append(opts, stub.WithLogger(logger))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			srv := stub.NewServer(settings, opts...)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stub gateway on %s (token ttl %s)\n",
				color.New(color.FgGreen).Sprint("✓"), srv.BaseURL(), settings.TokenTTL)
			<-ctx.Done()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&settings.Host, "host", settings.Host, "bind host")
	cmd.Flags().IntVar(&settings.Port, "port", settings.Port, "bind port")
	cmd.Flags().DurationVar(&settings.TokenTTL, "ttl", settings.TokenTTL, "token lifetime")
	cmd.Flags().StringSliceVar(&registered, "registered", nil, "phone numbers to report as registered")
	cmd.Flags().StringSliceVar(&sessions, "sessions", nil, "accepted session names (default: any)")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "project directory to log requests under .callsheet/logs")
	return cmd
}
