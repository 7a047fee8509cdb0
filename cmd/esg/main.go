package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"esgtrack/internal/app"
	"esgtrack/internal/config"
	"esgtrack/internal/engine"
	"esgtrack/internal/repo"
	"esgtrack/internal/server"
)

var settings *config.Settings

var rootCmd = &cobra.Command{
	Use:   "esg",
	Short: "esgtrack CLI",
	Long: `esgtrack turns a company's ESG questionnaire answers into a prioritized compliance plan.
- Sectors: each sector has a question bank; answers are yes, no or partial.
- Generation: "no" and "partial" answers become tasks, and "yes" on a required or mandatory question adds a verification task.
  Unanswered questions are skipped. Mandated frameworks add fixed tasks.
- Compliance: 'esg compliance <framework>' reports answered required questions and task progress for one framework.
- Tasks: todo -> in_progress -> pending_review -> completed, with blocked as a detour.
- Evidence: files or data points attached to a task; completion needs the required count.
- Rulebook: scheduling, categories and mandated frameworks, stored in the workspace DB (import from esg.yml).
- Event log: every change, view with 'esg log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.LoadSettings(viper.GetViper())
		if err != nil {
			return err
		}
		if err := config.InitLogger(s.Log); err != nil {
			return err
		}
		settings = s
		return nil
	},
}

func main() {
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := rootCmd.ExecuteContext(ctx)
	_ = zap.L().Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "local-user", "actor identifier")
	flags.Bool("force", false, "force operation")
	flags.StringP("company", "c", "", "company id")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	_ = viper.BindPFlag("workspace", flags.Lookup("workspace"))
	_ = viper.BindPFlag("json", flags.Lookup("json"))
	_ = viper.BindPFlag("actor", flags.Lookup("actor-id"))
	_ = viper.BindPFlag("force", flags.Lookup("force"))
	_ = viper.BindPFlag("company", flags.Lookup("company"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))
}

func registerCommands() {
	rootCmd.AddCommand(sectorCmd())
	rootCmd.AddCommand(companyCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(evidenceCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(nextCmd())
	rootCmd.AddCommand(complianceCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect the rulebook",
		Long:  "The rulebook (stored in DB) holds due-date offsets, category overrides, mandated framework tasks and webhooks. Import from esg.yml to change it.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	cfg.AddCommand(configImportCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show stored rulebook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if viper.GetBool("json") {
					return printJSON(e.Config)
				}
				data, err := e.Config.ToYAML()
				if err != nil {
					return err
				}
				fmt.Print(string(data))
				return nil
			})
		},
	}
}

func configValidateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored rulebook or a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if file != "" {
				_, err = config.FromFile(file)
			} else {
				err = withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
					return e.Config.Validate()
				})
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "validate this file instead of the stored rulebook")
	return cmd
}

func configImportCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import rulebook from esg.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = config.Path(settings.Workspace)
			}
			cfg, err := config.FromFile(file)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ImportRulebook(ctx, cfg, settings.Actor); err != nil {
					return err
				}
				fmt.Printf("imported rulebook from %s\n", file)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "rulebook file (default <workspace>/esg.yml)")
	return cmd
}

func configInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default esg.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(settings.Workspace)
			if _, err := os.Stat(path); err == nil && !viper.GetBool("force") {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: company changes, generation runs, task transitions and evidence.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var f repo.EventFilters
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.CompanyID = viper.GetString("company")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Company", "Entity", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.CompanyID, evt.EntityKind + ":" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&f.Limit, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := zap.L()
			ws, err := app.Open(cmd.Context(), settings, logger)
			if err != nil {
				return err
			}
			defer ws.Close()
			sc := settings.Server
			authCfg := server.AuthConfig{
				JWTSecret:              sc.JWT.Secret,
				Issuer:                 sc.JWT.Issuer,
				Audience:               sc.JWT.Audience,
				AllowLegacyActorHeader: sc.AllowLegacyActorHeader,
				Logger:                 logger,
			}
			if authCfg.JWTSecret == "" && !authCfg.AllowLegacyActorHeader {
				return fmt.Errorf("%s_SERVER_JWT_SECRET is required for bearer auth", config.EnvPrefix)
			}
			handler, err := server.New(server.Config{Engine: ws.Engine, BasePath: sc.BasePath, Auth: authCfg, Logger: logger})
			if err != nil {
				return err
			}
			server.NewWebhookDispatcher(ws.Engine, logger).Start(cmd.Context())
			srv := &http.Server{Addr: sc.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving esgtrack API",
				zap.String("url", "http://"+sc.Addr+sc.BasePath),
				zap.String("docs", "/docs"),
				zap.String("metrics", "/metrics"))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().String("base-path", "/v0", "API base path")
	cmd.Flags().Bool("allow-legacy-actor-header", false, "accept X-Actor-Id without a token (dev only)")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.base_path", cmd.Flags().Lookup("base-path"))
	_ = viper.BindPFlag("server.allow_legacy_actor_header", cmd.Flags().Lookup("allow-legacy-actor-header"))
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	ws, err := app.Open(ctx, settings, zap.L())
	if err != nil {
		return err
	}
	defer ws.Close()
	return fn(ctx, ws.Engine)
}

func companyID() (string, error) {
	id := strings.TrimSpace(viper.GetString("company"))
	if id == "" {
		return "", fmt.Errorf("--company (or %s_COMPANY) is required", config.EnvPrefix)
	}
	return id, nil
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
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

func optionalString(cmd *cobra.Command, flag, value string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &value
}
