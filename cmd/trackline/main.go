package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"trackline/api/internal/actorcache"
	"trackline/api/internal/app"
	"trackline/api/internal/config"
	"trackline/api/internal/history"
	"trackline/api/internal/ident"
	"trackline/api/internal/search"
	"trackline/api/internal/store"
	"trackline/api/internal/track"
)

func main() {
	root := &cobra.Command{
		Use:           "trackline",
		Short:         "Mutation history engine maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(migrateCmd(), historyCmd(), tasksCmd(), completeCmd(), reindexCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("trackline: %v", err)
	}
}

// env holds the wired service graph for one command invocation.
type env struct {
	db      *sql.DB
	service *app.Service
	search  *search.Service
	closers []func()
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

func setup(ctx context.Context, cfg config.Config) (*env, error) {
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	e := &env{db: db}
	e.closers = append(e.closers, func() { db.Close() })

	dataStore := store.NewPostgresStore(db)

	var displayCache history.DisplayCache
	if strings.TrimSpace(cfg.RedisURL) != "" {
		cache, err := actorcache.New(cfg.RedisURL, cfg.ActorCacheTTL)
		if err != nil {
			e.close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		e.closers = append(e.closers, func() { cache.Close() })
		displayCache = cache
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		e.closers = append(e.closers, meiliClient.Close)
	}
	e.search = search.NewService(meiliClient, search.NewPgHistory(db))

	hist := history.New(dataStore, ident.New(dataStore), displayCache)
	e.service = app.New(dataStore, hist, e.search)
	return e, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ctx := cmd.Context()

			db, err := store.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer db.Close()

			if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
				return fmt.Errorf("migrations failed: %w", err)
			}
			log.Printf("migrations applied from %s", cfg.MigrationsDir)
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var titleFilter string

	cmd := &cobra.Command{
		Use:   "history <task-id>",
		Short: "Print a task's audit feed, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ctx := cmd.Context()

			e, err := setup(ctx, cfg)
			if err != nil {
				return err
			}
			defer e.close()

			events, err := e.service.TaskHistory(ctx, args[0], titleFilter)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(os.Stdout, "no history")
				return nil
			}
			for _, event := range events {
				fmt.Fprintf(os.Stdout, "%s  %s  %-20s %s  %q\n",
					event.CreatedAt.Format("2006-01-02 15:04:05"),
					event.ID, event.Action, event.ActorDisplay, event.Title)
				for _, change := range event.Changes {
					fmt.Fprintf(os.Stdout, "    %s: %v -> %v\n", change.Field, change.Old, change.New)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&titleFilter, "title", "", "only events whose title snapshot contains this substring")
	return cmd
}

func tasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <project-id>",
		Short: "List a project's tasks in creation order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ctx := cmd.Context()

			e, err := setup(ctx, cfg)
			if err != nil {
				return err
			}
			defer e.close()

			tasks, err := e.service.ProjectTasks(ctx, args[0])
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(os.Stdout, "no tasks")
				return nil
			}
			for _, task := range tasks {
				fmt.Fprintf(os.Stdout, "%s  %-12s %-7s %q\n", task.ID, task.Status, task.Priority, task.Title)
			}
			return nil
		},
	}
}

func completeCmd() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "complete <task-id>",
		Short: "Mark a task completed, enforcing the dependency gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ctx := cmd.Context()

			e, err := setup(ctx, cfg)
			if err != nil {
				return err
			}
			defer e.close()

			status := track.StatusCompleted
			task, err := e.service.UpdateTask(ctx, args[0], app.Patch{Status: &status}, actor, false)
			if err != nil {
				var incomplete *track.IncompleteDependencyError
				if errors.As(err, &incomplete) {
					return fmt.Errorf("%s", incomplete.Error())
				}
				return err
			}
			fmt.Fprintf(os.Stdout, "%s completed at %s\n", task.ID, task.CompletedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "system", "actor recorded in the history event")
	return cmd
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the Meilisearch history index from Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if strings.TrimSpace(cfg.MeiliURL) == "" {
				return fmt.Errorf("MEILI_URL is not configured")
			}
			ctx := cmd.Context()

			e, err := setup(ctx, cfg)
			if err != nil {
				return err
			}
			defer e.close()

			e.search.ReindexAllFromPG(ctx)
			log.Printf("reindex complete")
			return nil
		},
	}
}
