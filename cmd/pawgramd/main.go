package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/errors"
	"github.com/sirupsen/logrus"

	"github.com/celerix-dev/pawgram/internal/api"
	"github.com/celerix-dev/pawgram/internal/auth"
	"github.com/celerix-dev/pawgram/internal/config"
	"github.com/celerix-dev/pawgram/internal/engine"
	"github.com/celerix-dev/pawgram/internal/metrics"
	"github.com/celerix-dev/pawgram/internal/social"
	"github.com/celerix-dev/pawgram/internal/vault"
	"github.com/celerix-dev/pawgram/pkg/schema"
)

var logger = logrus.WithField("component", "pawgramd")

func main() {
	if err := run(); err != nil {
		logger.Fatal(errors.ErrorStack(err))
	}
}

func run() error {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		return errors.Annotate(err, "load configuration")
	}
	cfg.ConfigureLogging()
	gin.SetMode(gin.ReleaseMode)
	logger.Info("starting Pawgram daemon")

	// 2. Persistence and document store
	persister, err := engine.NewPersistence(cfg.DataDir)
	if err != nil {
		return errors.Annotate(err, "initialize persistence")
	}
	initialData, err := persister.LoadAll()
	if err != nil {
		logger.Warnf("could not load existing data: %v", err)
	}
	store := engine.NewMemStore(initialData, persister)
	logger.WithFields(logrus.Fields{
		"accounts": store.Count(engine.Accounts),
		"posts":    store.Count(engine.Posts),
	}).Info("document store loaded")

	if err := metrics.RegisterDocumentGauges(store, engine.Accounts, engine.Posts); err != nil {
		return errors.Annotate(err, "register store metrics")
	}

	// 3. Sessions
	ledger, err := auth.OpenLedger(cfg.SessionDB, nil)
	if err != nil {
		return errors.Annotate(err, "open session ledger")
	}
	defer ledger.Close()
	if n, err := ledger.Purge(context.Background()); err != nil {
		logger.Warnf("could not purge expired sessions: %v", err)
	} else if n > 0 {
		logger.WithField("sessions", n).Info("purged expired sessions")
	}

	tokens, err := auth.NewTokens([]byte(cfg.JWTSecret), cfg.TokenIssuer, cfg.TokenTTL, nil)
	if err != nil {
		return errors.Trace(err)
	}

	// 4. Services and HTTP API
	accounts := social.NewAccounts(store, nil, cfg.DefaultAvatar)
	posts := social.NewPosts(store, accounts, nil)
	h := &api.Handler{
		Auth:     social.NewAuthService(accounts, tokens, ledger),
		Posts:    posts,
		Profiles: social.NewProfiles(accounts, posts),
		Verifier: auth.NewVerifier(tokens, ledger),
		Client:   schema.ClientConfig{APIURL: cfg.PublicURL},
	}
	router := api.NewRouter(h, api.Options{
		CORSOrigin:   cfg.CORSOrigin,
		MaxBodyBytes: cfg.MaxBodyBytes,
		PublicDir:    cfg.PublicDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. TLS
	if cfg.TLSSelfSigned {
		logger.Info("generating self-signed certificate")
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			return errors.Annotate(err, "generate TLS certificate")
		}
		srv.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}

	// 6. Serve until a signal arrives
	serveErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"port": cfg.HTTPPort, "tls": cfg.TLSSelfSigned}).Info("HTTP API listening")
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err, ok := <-serveErr:
		if ok {
			return errors.Annotate(err, "HTTP server failed")
		}
	case <-sigChan:
		logger.Info("shutdown signal received, finishing requests")
	}

	// 7. Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warnf("HTTP shutdown: %v", err)
	}
	store.Wait()
	logger.Info("persistence complete, exiting")
	return nil
}
