package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/mariahq/maria/internal/chat"
	"github.com/mariahq/maria/internal/config"
	"github.com/mariahq/maria/internal/flow"
	"github.com/mariahq/maria/internal/handlers"
	"github.com/mariahq/maria/internal/logger"
	"github.com/mariahq/maria/internal/media"
	"github.com/mariahq/maria/internal/monday"
	"github.com/mariahq/maria/internal/reconcile"
	"github.com/mariahq/maria/internal/server"
	"github.com/mariahq/maria/internal/session"
	"github.com/mariahq/maria/internal/whatsapp"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideSessionStore,
			provideMondayClient,
			provideReconciler,
			provideGateway,
			provideRelay,
			provideCompleter,
			provideController,
			provideServerHandler(providePingHandler),
			provideServerHandler(provideWhatsAppHandler),
			provideServerHandler(provideMondayHandler),
			provideServer,
		),
		fx.Invoke(
			startSessionSweep,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideSessionStore(log *slog.Logger) *session.Store {
	return session.NewStore(log)
}

func provideMondayClient(log *slog.Logger, cfg config.Config) *monday.Client {
	return monday.NewClient(log, monday.Options{
		APIURL:           cfg.Monday.APIURL,
		APIToken:         cfg.Monday.APIToken,
		BoardID:          cfg.Monday.BoardID,
		IdentifierColumn: cfg.Monday.IdentifierColumn,
		PhoneColumn:      cfg.Monday.PhoneColumn,
		FileColumn:       cfg.Monday.FileColumn,
	})
}

func provideReconciler(log *slog.Logger, client *monday.Client) *reconcile.Reconciler {
	return reconcile.NewReconciler(log, client)
}

func provideGateway(log *slog.Logger, cfg config.Config) *whatsapp.Gateway {
	if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" {
		log.Warn("twilio credentials missing, outbound messaging will fail")
	}
	return whatsapp.NewGateway(log, cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.From)
}

func provideRelay(log *slog.Logger, gateway *whatsapp.Gateway, client *monday.Client) *media.Relay {
	return media.NewRelay(log, gateway, client)
}

// provideCompleter returns nil when no API key is configured: free text
// during document collection is then simply ignored.
func provideCompleter(log *slog.Logger, cfg config.Config) flow.Completer {
	if cfg.OpenAI.APIKey == "" {
		log.Info("openai api key missing, fallback responder disabled")
		return nil
	}
	client := chat.NewClient(log, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model)
	return &completerAdapter{client: client}
}

type completerAdapter struct {
	client *chat.Client
}

func (a *completerAdapter) Complete(ctx context.Context, history []flow.Turn) (string, error) {
	messages := make([]chat.Message, len(history))
	for i, turn := range history {
		messages[i] = chat.Message{Role: turn.Role, Content: turn.Content}
	}
	return a.client.Complete(ctx, messages)
}

func provideController(log *slog.Logger, cfg config.Config, sessions *session.Store, reconciler *reconcile.Reconciler, gateway *whatsapp.Gateway, relay *media.Relay, completer flow.Completer) *flow.Controller {
	controller := flow.NewController(log, sessions, reconciler, gateway, relay)
	if completer != nil {
		controller.SetCompleter(completer)
	}
	if cfg.Twilio.TemplateSID != "" {
		controller.SetTemplateID(cfg.Twilio.TemplateSID)
	}
	return controller
}

func providePingHandler(log *slog.Logger) *handlers.PingHandler {
	return handlers.NewPingHandler(log)
}

func provideWhatsAppHandler(log *slog.Logger, cfg config.Config, controller *flow.Controller) *handlers.WhatsAppHandler {
	return handlers.NewWhatsAppHandler(log, controller, cfg.Twilio.AuthToken, cfg.Twilio.PublicBaseURL, cfg.Twilio.ValidateSignature)
}

func provideMondayHandler(log *slog.Logger, cfg config.Config, controller *flow.Controller, client *monday.Client) *handlers.MondayHandler {
	return handlers.NewMondayHandler(log, controller, client, cfg.Monday.SigningSecret)
}

type serverParams struct {
	fx.In
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(cfg config.Config, params serverParams) *server.Server {
	return server.NewServer(cfg.Server.Addr, params.Handlers)
}

// startSessionSweep schedules idle-session expiry. A zero TTL keeps
// abandoned sessions forever, matching the no-timeout behavior.
func startSessionSweep(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, sessions *session.Store) error {
	ttl, err := cfg.Flow.ParseSessionTTL()
	if err != nil {
		return err
	}
	if ttl == 0 {
		log.Info("session expiry disabled")
		return nil
	}
	interval, err := cfg.Flow.ParseSweepInterval()
	if err != nil {
		return err
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if removed := sessions.Sweep(ttl); removed > 0 {
			log.Info("swept idle sessions", slog.Int("removed", removed))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule session sweep: %w", err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			scheduler.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopCtx := scheduler.Stop()
			select {
			case <-stopCtx.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting server", slog.String("addr", cfg.Server.Addr))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
