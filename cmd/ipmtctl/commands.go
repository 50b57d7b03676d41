package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"example.com/ipmt/internal/app"
	"example.com/ipmt/internal/auth"
	"example.com/ipmt/internal/catalog"
	"example.com/ipmt/internal/domain"
	"example.com/ipmt/internal/ingest"
	"example.com/ipmt/internal/ipmt"
	"example.com/ipmt/internal/outbox"
	persistence "example.com/ipmt/internal/persistence/postgres"
	"example.com/ipmt/internal/personnel"
	"example.com/ipmt/internal/sheet"
)

func newMigrateCommand(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := env.openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			applied, err := persistence.Migrate(cmd.Context(), pool)
			if err != nil {
				return err
			}
			return env.emit(cmd.OutOrStdout(), applied, func(w io.Writer) {
				if len(applied) == 0 {
					fmt.Fprintln(w, "schema up to date")
					return
				}
				for _, name := range applied {
					fmt.Fprintln(w, "applied", name)
				}
			})
		},
	}
}

func newCatalogCommand(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{Use: "catalog", Short: "Manage units, personnel, activities and indicators"}
	cmd.AddCommand(&cobra.Command{
		Use:   "load <file.yaml>",
		Short: "Upsert a catalog seed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}
			store, closeStore, err := env.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			sum, err := catalog.Apply(cmd.Context(), store, doc, env.logger)
			if err != nil {
				return err
			}
			if _, err := catalog.EnsureFallback(cmd.Context(), store); err != nil {
				return err
			}
			return env.emit(cmd.OutOrStdout(), sum, func(w io.Writer) {
				fmt.Fprintf(w, "units=%d personnel=%d activities=%d indicators=%d\n",
					sum.Units, sum.Personnel, sum.Activities, sum.Indicators)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "personnel",
		Short: "List active personnel by unit",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := env.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			entries, err := personnel.List(cmd.Context(), store)
			if err != nil {
				return err
			}
			return env.emit(cmd.OutOrStdout(), entries, func(w io.Writer) {
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\t%s\n", e.Unit, e.Username, e.DisplayName)
				}
			})
		},
	})
	return cmd
}

func newImportCommand(env *cliEnv) *cobra.Command {
	var (
		target      string
		defaultUnit string
	)
	cmd := &cobra.Command{
		Use:   "import <file.csv|file.xlsx>",
		Short: "Import legacy accomplishment records or requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			store, closeStore, err := env.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			importer := ingest.NewImporter(store,
				ingest.WithLogger(env.logger),
				ingest.WithLocation(env.cfg.Location()),
				ingest.WithDefaultUnit(defaultUnit))
			result, err := importer.Import(cmd.Context(), f, filepath.Base(args[0]), target)
			if err != nil {
				return err
			}
			return env.emit(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "%s: inserted=%d skipped=%d\n", result.Target, result.Inserted, result.Skipped)
				for _, rowErr := range result.Errors {
					fmt.Fprintf(w, "  line %d: %s\n", rowErr.Line, rowErr.Reason)
				}
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", string(ingest.TargetAccomplishment), "accomplishment or request")
	cmd.Flags().StringVar(&defaultUnit, "unit", "", "unit assigned to rows without one")
	return cmd
}

type selection struct {
	month     string
	unit      string
	personnel []string
}

func (s *selection) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.month, "month", "", "month as YYYY-MM (required)")
	cmd.Flags().StringVar(&s.unit, "unit", "", "unit name (required)")
	cmd.Flags().StringSliceVar(&s.personnel, "personnel", nil, "usernames or names; repeat or comma-separate")
	_ = cmd.MarkFlagRequired("month")
}

func newPreviewCommand(env *cliEnv) *cobra.Command {
	var sel selection
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Compile IPMT rows without saving them",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := env.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			components, err := app.Build(cmd.Context(), env.cfg, store, env.logger)
			if err != nil {
				return err
			}
			result, err := components.Service.Preview(cmd.Context(), sel.month, sel.unit, sel.personnel)
			if err != nil {
				return err
			}
			return env.emit(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "%s, %s\n", result.Unit.Name, result.MonthLabel)
				for _, p := range result.People {
					fmt.Fprintln(w, p.Person.DisplayName())
					for _, row := range p.Rows {
						fmt.Fprintf(w, "  %s\t%s\t%s\n", row.IndicatorLabel(), row.Accomplishment, row.Remarks)
					}
				}
				if len(result.Unresolved) > 0 {
					fmt.Fprintf(w, "unresolved: %s\n", strings.Join(result.Unresolved, ", "))
				}
			})
		},
	}
	sel.bind(cmd)
	_ = cmd.MarkFlagRequired("unit")
	return cmd
}

func newExportCommand(env *cliEnv) *cobra.Command {
	var (
		sel   selection
		out   string
		batch bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render an IPMT workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := env.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			components, err := app.Build(cmd.Context(), env.cfg, store, env.logger)
			if err != nil {
				return err
			}

			f, err := os.CreateTemp(filepath.Dir(out), ".ipmt-*.xlsx")
			if err != nil {
				return err
			}
			defer os.Remove(f.Name())

			var name string
			if batch {
				unit := sel.unit
				if unit == "" {
					unit = ipmt.AllUnits
				}
				err = components.Service.ExportBatch(cmd.Context(), f, sel.month, unit, sel.personnel)
				if month, parseErr := domain.ParseMonth(sel.month); parseErr == nil {
					name = ipmt.BatchFileName(unit, month)
				}
			} else {
				name, err = components.Service.ExportTemplate(cmd.Context(), f, ipmt.ExportRequest{
					Month: sel.month, Unit: sel.unit, Personnel: sel.personnel,
				})
			}
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}

			dest := out
			if info, statErr := os.Stat(out); statErr == nil && info.IsDir() && name != "" {
				dest = filepath.Join(out, name)
			}
			if err := os.Rename(f.Name(), dest); err != nil {
				return err
			}
			env.logger.Debug("workbook written", zap.String("path", dest))
			return env.emit(cmd.OutOrStdout(), map[string]string{"path": dest}, func(w io.Writer) {
				fmt.Fprintln(w, dest)
			})
		},
	}
	sel.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (required)")
	cmd.Flags().BoolVar(&batch, "batch", false, "one sheet per person instead of the template")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newTemplateCommand(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{Use: "template", Short: "Manage the IPMT workbook template"}
	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write a blank starter template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := env.cfg.TemplatePath
			if len(args) == 1 {
				path = args[0]
			}
			written, err := app.EnsureTemplate(path)
			if err != nil {
				return err
			}
			return env.emit(cmd.OutOrStdout(), map[string]interface{}{"path": path, "written": written}, func(w io.Writer) {
				if written {
					fmt.Fprintln(w, "wrote", path)
					return
				}
				fmt.Fprintln(w, path, "already exists")
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cells",
		Short: "Show the fixed cells the template export writes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cells := map[string]interface{}{
				"personnel": sheet.PersonnelCell,
				"month":     sheet.MonthCell,
				"first_row": sheet.FirstRow,
			}
			return env.emit(cmd.OutOrStdout(), cells, func(w io.Writer) {
				fmt.Fprintf(w, "personnel=%s month=%s first_row=%d\n", sheet.PersonnelCell, sheet.MonthCell, sheet.FirstRow)
			})
		},
	})
	return cmd
}

func newTokenCommand(env *cliEnv) *cobra.Command {
	var (
		subject string
		role    string
		scopes  []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{Use: "token", Short: "Issue bearer tokens for local use"}
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.Issue(auth.Config{Secret: env.cfg.JWTSecret, Issuer: env.cfg.JWTIssuer}, subject, role, scopes, ttl)
			if err != nil {
				return err
			}
			return env.emit(cmd.OutOrStdout(), map[string]string{"token": token}, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}
	issue.Flags().StringVar(&subject, "subject", "", "token subject (required)")
	issue.Flags().StringVar(&role, "role", "", "role claim; admin holds every scope")
	issue.Flags().StringSliceVar(&scopes, "scope", []string{auth.ScopeRead}, "granted scopes")
	issue.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = issue.MarkFlagRequired("subject")
	cmd.AddCommand(issue)
	return cmd
}

func newOutboxCommand(env *cliEnv) *cobra.Command {
	var limit int
	cmd := &cobra.Command{Use: "outbox", Short: "Inspect and repair event delivery"}
	requeue := &cobra.Command{
		Use:   "requeue",
		Short: "Move dead-lettered events back into the outbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := env.openPool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			moved, err := outbox.Requeue(cmd.Context(), pool, limit)
			if err != nil {
				return err
			}
			return env.emit(cmd.OutOrStdout(), map[string]int{"requeued": moved}, func(w io.Writer) {
				fmt.Fprintf(w, "requeued %d event(s)\n", moved)
			})
		},
	}
	requeue.Flags().IntVar(&limit, "limit", 100, "maximum events to move")
	cmd.AddCommand(requeue)
	return cmd
}
