package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/tahcohcat/monument-narrator/config"
	"github.com/tahcohcat/monument-narrator/internal/api"
	"github.com/tahcohcat/monument-narrator/internal/guide"
	"github.com/tahcohcat/monument-narrator/internal/logger"
	"github.com/tahcohcat/monument-narrator/internal/prefs"
	"github.com/tahcohcat/monument-narrator/internal/websocket"
)

const (
	conversationTTL = 30 * time.Minute
	shutdownTimeout = 10 * time.Second
	defaultSecret   = "change-this-session-secret"
)

func newServeCommand(load configLoader) *cobra.Command {
	var port int
	var secureCookies bool

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Run the HTTP and websocket API",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			return serve(cmd.Context(), cfg, secureCookies)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides server.port)")
	cmd.Flags().BoolVar(&secureCookies, "secure-cookies", false, "Only send preference cookies over HTTPS")

	return cmd
}

func serve(parent context.Context, cfg *config.Config, secureCookies bool) error {
	log := logger.New().WithField("component", "server")

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub(cfg.Server.AllowedOrigins)
	go hub.Run(ctx)

	a, err := newApp(ctx, cfg, hub)
	if err != nil {
		return err
	}
	defer a.Close()

	if secret := cfg.Server.SessionSecret; secret == defaultSecret || strings.HasPrefix(secret, "${") {
		log.Warn("server.session_secret is not set, change it in production")
	}
	store, err := prefs.NewStore(cfg.Server.SessionSecret, secureCookies)
	if err != nil {
		return fmt.Errorf("failed to create preference store: %w", err)
	}

	if a.llm != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.llm.IsModelAvailable(checkCtx); err != nil {
			log.WithError(err).Warn("language model not reachable, monument guide requests may fail")
		}
		cancel()
	}

	deps := api.Deps{
		Voices:        a.registry,
		Narrator:      a.coordinator,
		Permission:    a.gate,
		Prefs:         store,
		Events:        hub,
		LLM:           a.llm,
		Conversations: guide.NewConversations(conversationTTL),
	}
	if a.cache != nil {
		deps.Cache = a.cache
	}

	r := mux.NewRouter()
	api.NewHandler(ctx, deps).RegisterRoutes(r.PathPrefix("/api/v1").Subrouter())
	r.HandleFunc("/ws", hub.ServeWS)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	// CORS setup for browser clients
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info(fmt.Sprintf("🏛️ Monument narrator starting on port %d", cfg.Server.Port))
	log.Info(fmt.Sprintf("📍 Cloud voice: %s (configured: %t)", a.cloud.Name(), a.registry.CloudConfigured()))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
