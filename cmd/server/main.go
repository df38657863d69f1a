package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/roomchat/internal/account"
	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/logging"
	"github.com/Tyrowin/roomchat/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	log, err := logging.New(cfg.LogLevel, logging.Format(cfg.LogFormat))
	if err != nil {
		return fmt.Errorf("logger error: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway := server.NewGateway(cfg.Server(), log.Named("chat"))
	mux := server.SetupRoutes(gateway)

	if accCfg := cfg.Account(); accCfg.Enabled() {
		pool, err := account.Connect(ctx, accCfg)
		if err != nil {
			return fmt.Errorf("database error: %w", err)
		}
		defer func() {
			log.Info("Closing database pool...")
			pool.Close()
		}()

		store := account.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("schema error: %w", err)
		}

		accLog := log.Named("account")
		handler := account.NewHandler(
			account.NewService(store, accCfg, accLog),
			account.NewTokenIssuer(accCfg.JWTSecret, accCfg.TokenTTL),
			accLog,
		)
		mountAccountRoutes(mux, account.NewEngine(handler))
	} else {
		log.Warn("DATABASE_URL not set; account routes disabled")
	}

	httpServer := server.CreateServer(gateway.Config().Port, mux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		gateway.Run()
		return nil
	})
	g.Go(func() error {
		return server.StartServer(httpServer, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")
		httpErr := server.ShutdownServer(httpServer, cfg.ShutdownTimeout, log)
		if err := gateway.Shutdown(cfg.ShutdownTimeout); err != nil {
			log.Warn("Hub shutdown incomplete", zap.Error(err))
		}
		return httpErr
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Program stopped cleanly")
	return nil
}

// mountAccountRoutes forwards the account API paths to the gin engine.
func mountAccountRoutes(mux *http.ServeMux, engine http.Handler) {
	mux.Handle(account.PathRegister, engine)
	mux.Handle(account.PathLogin, engine)
	mux.Handle(account.PathUser+"/", engine)
}
