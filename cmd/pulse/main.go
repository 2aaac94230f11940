package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pulseboard/internal/config"
	"pulseboard/internal/db"
	"pulseboard/internal/domain"
	"pulseboard/internal/engine"
	"pulseboard/internal/generate"
	"pulseboard/internal/migrate"
	"pulseboard/internal/repo"
	"pulseboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Pulseboard CLI",
	Long: `Pulseboard turns raw project exports into executive status reports.
- Upload an issue-tracker dump (CSV/TSV) with 'pulse ingest'; the generation
  service distills it into a structured report: summary, health, risks,
  action items, workload and dependencies.
- Reports live in the .pulseboard workspace store; save, list, edit and
  delete them with 'pulse report'.
- 'pulse serve' exposes the same pipeline over HTTP for dashboard frontends.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PULSEBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func ingestCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Generate a status report from a raw project export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				gw, err := newGateway(ctx, e.Config)
				if err != nil {
					return err
				}
				e.Generator = gw
				r, err := e.Ingest(ctx, string(raw), actorID(ctx, e))
				if err != nil {
					return err
				}
				if save {
					if err := e.Save(ctx, r, actorID(ctx, e)); err != nil {
						return err
					}
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "save the generated report")
	return cmd
}

func reportCmd() *cobra.Command {
	rep := &cobra.Command{Use: "report", Short: "Manage saved reports"}
	rep.AddCommand(reportListCmd())
	rep.AddCommand(reportShowCmd())
	rep.AddCommand(reportDeleteCmd())
	rep.AddCommand(reportExportCmd())
	rep.AddCommand(reportEditCmd())
	return rep
}

func reportListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				reports := e.List()
				if viper.GetBool("json") {
					return printJSON(reports)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Sentiment", "Date"})
				for _, r := range reports {
					tw.AppendRow(table.Row{r.ID, r.Title, r.OverallStatus, r.DeliverySentiment, r.ReportDate})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func reportShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.Get(args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
}

func reportDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Delete(ctx, args[0], actorID(ctx, e))
			})
		},
	}
}

func reportExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <id>",
		Short: "Render a report as plain text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				text, err := e.Export(args[0])
				if err != nil {
					return err
				}
				fmt.Println(text)
				return nil
			})
		},
	}
}

func reportEditCmd() *cobra.Command {
	var (
		title, projectName, summary, status string
		sentiment                           int
		health                              []string
		addHighlights, addUpcoming          []string
		addRisk, addAction, addDependency   bool
		save                                bool
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a saved report",
		Long: `Applies the requested edits to a saved report and prints the result.
Without --save the edited report is printed but not persisted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.Get(args[0])
				if err != nil {
					return err
				}
				rec := e.Reconciler
				if cmd.Flags().Changed("title") {
					r = rec.SetTitle(r, title)
				}
				if cmd.Flags().Changed("project-name") {
					r = rec.SetProjectName(r, projectName)
				}
				if cmd.Flags().Changed("summary") {
					r = rec.SetSummary(r, summary)
				}
				if cmd.Flags().Changed("status") {
					if r, err = rec.SetOverallStatus(r, status); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("sentiment") {
					r = rec.SetSentiment(r, sentiment)
				}
				for _, kv := range health {
					dim, level, ok := strings.Cut(kv, "=")
					if !ok {
						return fmt.Errorf("invalid --health %q, expected dimension=status", kv)
					}
					if r, err = rec.SetHealth(r, dim, level); err != nil {
						return err
					}
				}
				for _, h := range addHighlights {
					r = rec.AddHighlight(r, h)
				}
				for _, u := range addUpcoming {
					r = rec.AddUpcomingWork(r, u)
				}
				if addRisk {
					r = rec.AddRisk(r)
				}
				if addAction {
					r = rec.AddActionItem(r)
				}
				if addDependency {
					r = rec.AddDependency(r)
				}
				if save {
					if err := e.Save(ctx, r, actorID(ctx, e)); err != nil {
						return err
					}
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "replace the title")
	cmd.Flags().StringVar(&projectName, "project-name", "", "replace the project name")
	cmd.Flags().StringVar(&summary, "summary", "", "replace the executive summary")
	cmd.Flags().StringVar(&status, "status", "", "replace the overall status")
	cmd.Flags().IntVar(&sentiment, "sentiment", 0, "replace the delivery sentiment (clamped to 0-100)")
	cmd.Flags().StringArrayVar(&health, "health", nil, "set a health dimension, e.g. schedule='At Risk' (repeatable)")
	cmd.Flags().StringArrayVar(&addHighlights, "add-highlight", nil, "append a highlight (repeatable)")
	cmd.Flags().StringArrayVar(&addUpcoming, "add-upcoming", nil, "append upcoming work (repeatable)")
	cmd.Flags().BoolVar(&addRisk, "add-risk", false, "append a blank risk entry")
	cmd.Flags().BoolVar(&addAction, "add-action", false, "append a blank action item")
	cmd.Flags().BoolVar(&addDependency, "add-dependency", false, "append a blank dependency")
	cmd.Flags().BoolVar(&save, "save", false, "persist the edited report")
	return cmd
}

func loginCmd() *cobra.Command {
	var email, name string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Set the workspace identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Login(ctx, domain.User{Email: email, Name: name})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the workspace identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Logout(ctx)
			})
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the workspace identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CurrentUser(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default pulseboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			return os.WriteFile(path, []byte(config.GenerateDefault()), 0o644)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	})
	return cfg
}

func apikeyCmd() *cobra.Command {
	keys := &cobra.Command{Use: "apikey", Short: "Manage API keys for the HTTP server"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key (the secret is printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				secret := uuid.NewString()
				key := domain.APIKey{
					ID:      uuid.NewString(),
					Name:    name,
					KeyHash: repo.HashAPIKey(secret),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				fmt.Printf("api key %s created\nsecret: %s\n", key.ID, secret)
				return nil
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "key label")
	keys.AddCommand(create)
	keys.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	})
	keys.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	})
	return keys
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				gw, err := newGateway(ctx, e.Config)
				if err != nil {
					return err
				}
				e.Generator = gw
				authCfg := server.AuthConfig{JWTSecret: os.Getenv("PULSEBOARD_JWT_SECRET")}
				if authCfg.JWTSecret == "" {
					return fmt.Errorf("PULSEBOARD_JWT_SECRET is required for bearer auth")
				}
				if addr == "" {
					addr = e.Config.Server.Addr
				}
				if basePath == "" {
					basePath = e.Config.Server.BasePath
				}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Pulseboard API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	e, err := engine.New(ctx, conn, cfg, nil)
	if err != nil {
		return err
	}
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func newGateway(ctx context.Context, cfg *config.Config) (*generate.Gateway, error) {
	apiKey := os.Getenv(cfg.Generation.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%s is required for report generation", cfg.Generation.APIKeyEnv)
	}
	return generate.New(ctx, generate.Config{
		APIKey:  apiKey,
		Model:   cfg.Generation.Model,
		Timeout: time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
	})
}

func actorID(ctx context.Context, e engine.Engine) string {
	if u, err := e.CurrentUser(ctx); err == nil && u.Email != "" {
		return u.Email
	}
	return "local-user"
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
