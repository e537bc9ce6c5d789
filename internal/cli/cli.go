// Package cli implements the coopctl command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sangkips/coopmart-api/internal/app"
	"github.com/sangkips/coopmart-api/internal/application/service"
	"github.com/sangkips/coopmart-api/internal/config"
	"github.com/sangkips/coopmart-api/internal/importer"
	"github.com/sangkips/coopmart-api/pkg/identity"
	"github.com/sangkips/coopmart-api/pkg/logger"
	"github.com/sangkips/coopmart-api/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRootCommand builds the root coopctl command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "coopctl",
		Short:         "Cooperative store administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newExportCmd())
	root.AddCommand(newCycleCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newPruneKeysCmd())

	return root
}

// Execute runs the coopctl CLI.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Env,
	})
}

// runWithApp builds the application graph, runs fn and releases everything afterwards
func runWithApp(ctx context.Context, opts app.Options, fn func(ctx context.Context, a *app.App) error) error {
	cfg := config.Load()
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.Build(ctx, cfg, log, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// Serve runs the HTTP API until ctx is cancelled, then drains in-flight requests
func Serve(ctx context.Context) error {
	return runWithApp(ctx, app.Options{Migrate: true}, func(ctx context.Context, a *app.App) error {
		if a.Cfg.App.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}

		srv := &http.Server{
			Addr:              ":" + a.Cfg.App.Port,
			Handler:           a.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.Log.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", a.Cfg.App.Env))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		a.Log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Serve(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and seed reference data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd.Context(), app.Options{Migrate: true}, func(ctx context.Context, a *app.App) error {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [members|items|prices|markups] [file]",
		Short: "Bulk upsert a sheet (.xlsx or .csv)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := importer.ParseKind(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			table, err := importer.Read(f, args[1])
			if err != nil {
				return err
			}
			actor, _ := cmd.Flags().GetString("actor")

			return runWithApp(cmd.Context(), app.Options{}, func(ctx context.Context, a *app.App) error {
				result, err := a.Services.Imports.Import(ctx, kind, table, actor)
				if result != nil {
					if perr := printJSON(cmd, result); perr != nil && err == nil {
						return perr
					}
				}
				return err
			})
		},
	}
	cmd.Flags().String("actor", "coopctl", "Name recorded on stock movements")
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write report workbooks",
	}

	demand := &cobra.Command{
		Use:   "demand",
		Short: "Export per-branch demand",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")
			department, _ := cmd.Flags().GetString("department")
			return runWithApp(cmd.Context(), app.Options{}, func(ctx context.Context, a *app.App) error {
				export, err := a.Services.Reports.ExportDemandWorkbook(ctx, department)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, export.Workbook, 0o644); err != nil {
					return err
				}
				for _, w := range export.Warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d branches)\n", out, export.Branches)
				return nil
			})
		},
	}
	demand.Flags().StringP("output", "o", "demand.xlsx", "Output file")
	demand.Flags().String("department", "", "Restrict to one department")

	itemsPack := &cobra.Command{
		Use:   "items-pack",
		Short: "Export the per-branch items pack",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")
			return runWithApp(cmd.Context(), app.Options{}, func(ctx context.Context, a *app.App) error {
				data, err := a.Services.Reports.ExportItemsPack(ctx)
				if err != nil {
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
				return nil
			})
		},
	}
	itemsPack.Flags().StringP("output", "o", "items-pack.xlsx", "Output file")

	cmd.AddCommand(demand, itemsPack)
	return cmd
}

func newCycleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Manage ordering cycles",
	}

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			activate, _ := cmd.Flags().GetBool("activate")
			return runWithApp(cmd.Context(), app.Options{}, func(ctx context.Context, a *app.App) error {
				cycle, err := a.Services.Cycles.CreateCycle(ctx, &service.CreateCycleInput{
					Name:     args[0],
					StartsAt: time.Now(),
					Activate: activate,
				})
				if err != nil {
					return err
				}
				return printJSON(cmd, cycle)
			})
		},
	}
	create.Flags().Bool("activate", false, "Make the new cycle the active one")

	activate := &cobra.Command{
		Use:   "activate [id]",
		Short: "Make a cycle the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid cycle id %q", args[0])
			}
			return runWithApp(cmd.Context(), app.Options{}, func(ctx context.Context, a *app.App) error {
				cycle, err := a.Services.Cycles.ActivateCycle(ctx, uint(id))
				if err != nil {
					return err
				}
				return printJSON(cmd, cycle)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd.Context(), app.Options{}, func(ctx context.Context, a *app.App) error {
				cycles, err := a.Services.Cycles.ListCycles(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, cycles)
			})
		},
	}

	cmd.AddCommand(create, activate, list)
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			username, _ := cmd.Flags().GetString("username")
			memberNo, _ := cmd.Flags().GetString("member-no")
			branch, _ := cmd.Flags().GetUint("branch")

			p := identity.Principal{
				UserID:   uuid.New(),
				Username: username,
				Role:     identity.Role(role),
				MemberNo: utils.NormalizeCode(memberNo),
			}
			if branch > 0 {
				p.BranchID = &branch
			}

			cfg := config.Load()
			token, err := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.ExpiryHours).GenerateAccessToken(p)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().String("role", string(identity.RoleAdmin), "member, rep or admin")
	cmd.Flags().String("username", "coopctl", "Token subject name")
	cmd.Flags().String("member-no", "", "Member number for member tokens")
	cmd.Flags().Uint("branch", 0, "Branch id for rep tokens")
	return cmd
}

func newPruneKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-keys",
		Short: "Delete expired idempotency keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd.Context(), app.Options{}, func(ctx context.Context, a *app.App) error {
				n, err := a.IdempotencyKeys.DeleteExpired(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired keys\n", n)
				return nil
			})
		},
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
