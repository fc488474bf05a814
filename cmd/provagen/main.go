package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/provagen/provagen/internal/handler"
	appI18n "github.com/provagen/provagen/internal/i18n"
	"github.com/provagen/provagen/internal/llm"
	"github.com/provagen/provagen/internal/service"
	"github.com/provagen/provagen/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "provagen",
		Short: "AI-powered assessment generator and grader for teachers",
	}

	serve := serveCmd()
	root.AddCommand(serve)

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `provagen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP assessment server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "provagen.db", "SQLite database path")
	f.String("llm-provider", "gemini", "Model provider (gemini, openai)")
	f.String("llm-key", "", "API key for the model provider (or set PROVAGEN_LLM_KEY)")
	f.String("llm-model", "gemini-1.5-flash", "Model name")
	f.String("llm-url", "", "Base URL for OpenAI-compatible endpoints (openai provider only)")
	f.StringP("lang", "l", "pt-BR", "API message language (pt-BR, en)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("PROVAGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("provagen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/provagen")
	v.AddConfigPath("/etc/provagen")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	apiKey := v.GetString("llm-key")
	if apiKey == "" {
		return fmt.Errorf("model API key is required: set --llm-key flag or PROVAGEN_LLM_KEY env var")
	}
	invoker, err := llm.New(llm.Config{
		Provider: v.GetString("llm-provider"),
		APIKey:   apiKey,
		Model:    v.GetString("llm-model"),
		BaseURL:  v.GetString("llm-url"),
	})
	if err != nil {
		return fmt.Errorf("create model client: %w", err)
	}

	svc := service.New(db, invoker, slog.Default())
	h := handler.New(svc, slog.Default())

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"provider", v.GetString("llm-provider"),
		"model", v.GetString("llm-model"),
		"lang", lang,
	)
	return http.ListenAndServe(addr, r)
}
