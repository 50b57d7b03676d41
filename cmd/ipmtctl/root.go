package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/ipmt/internal/config"
	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/logging"
	persistence "example.com/ipmt/internal/persistence/postgres"
)

var validFormats = []string{"text", "json"}

// cliEnv holds what commands share. openStore is swapped in tests.
type cliEnv struct {
	cfg       config.Config
	format    string
	verbose   bool
	logger    *zap.Logger
	openStore func(ctx context.Context) (domain.Store, func(), error)
	openPool  func(ctx context.Context) (*pgxpool.Pool, error)
}

func defaultEnv() *cliEnv {
	env := &cliEnv{cfg: config.Load()}
	env.openPool = func(ctx context.Context) (*pgxpool.Pool, error) {
		return pgxpool.New(ctx, env.cfg.PostgresURL)
	}
	env.openStore = func(ctx context.Context) (domain.Store, func(), error) {
		pool, err := env.openPool(ctx)
		if err != nil {
			return nil, nil, err
		}
		return persistence.NewRepository(pool), pool.Close, nil
	}
	return env
}

func newRootCommand(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ipmtctl",
		Short:         "Administer the IPMT compiler",
		Long:          "Seed the catalog, import legacy records, preview and export IPMT workbooks, and manage the outbox.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(env.format) {
				return fmt.Errorf("invalid format %q: must be one of %v", env.format, validFormats)
			}
			level := env.cfg.LogLevel
			if env.verbose {
				level = "debug"
			}
			if env.logger == nil {
				env.logger = logging.Must(level)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&env.verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&env.format, "format", "text", "output format (json|text)")

	cmd.AddCommand(newMigrateCommand(env))
	cmd.AddCommand(newCatalogCommand(env))
	cmd.AddCommand(newImportCommand(env))
	cmd.AddCommand(newPreviewCommand(env))
	cmd.AddCommand(newExportCommand(env))
	cmd.AddCommand(newTemplateCommand(env))
	cmd.AddCommand(newTokenCommand(env))
	cmd.AddCommand(newOutboxCommand(env))
	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}

// emit writes v as indented JSON, or text via the callback.
func (env *cliEnv) emit(w io.Writer, v interface{}, text func(io.Writer)) error {
	if env.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
