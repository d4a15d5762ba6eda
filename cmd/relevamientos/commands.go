package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/smallbiznis/relevamientos/internal/providers/pdf"
	"github.com/smallbiznis/relevamientos/internal/ratelimit"
	"github.com/smallbiznis/relevamientos/internal/server"
	"github.com/smallbiznis/relevamientos/internal/survey"
	"github.com/smallbiznis/relevamientos/internal/survey/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web form",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				coreModules(),
				server.Module,
				fx.Invoke(configureRuntime),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			// migrations run while the graph is built
			app := fx.New(coreModules())
			return runOnce(app, func(context.Context) error { return nil })
		},
	}
}

func regenerateCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "regenerate [id...]",
		Short: "Render reports again for the given surveys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("pass survey ids or --all")
			}

			var (
				svc domain.Service
				log *zap.Logger
			)
			app := fx.New(
				coreModules(),
				pdf.Module,
				ratelimit.Module,
				survey.Module,
				fx.Populate(&svc, &log),
			)

			return runOnce(app, func(ctx context.Context) error {
				ids := args
				if all {
					surveys, err := svc.List(ctx)
					if err != nil {
						return err
					}
					ids = make([]string, 0, len(surveys))
					for _, s := range surveys {
						ids = append(ids, strconv.FormatInt(s.ID, 10))
					}
				}

				var failed int
				for _, id := range ids {
					report, err := svc.Regenerate(ctx, id)
					if err != nil {
						failed++
						log.Error("regenerate failed", zap.String("survey_id", id), zap.Error(err))
						continue
					}
					fmt.Fprintln(cmd.OutOrStdout(), report.Path)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d reports failed", failed, len(ids))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Regenerate every stored survey")
	return cmd
}
