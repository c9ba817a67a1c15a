package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/rvangils/accountd/assets"
	"github.com/rvangils/accountd/internal"
	"github.com/rvangils/accountd/internal/account"
	accountdb "github.com/rvangils/accountd/internal/account/db"
	"github.com/rvangils/accountd/internal/db"
	"github.com/rvangils/accountd/internal/dbmigrate"
	"github.com/rvangils/accountd/internal/email"
	"github.com/rvangils/accountd/internal/email/mailgun"
	"github.com/rvangils/accountd/internal/email/postmark"
	"github.com/rvangils/accountd/internal/email/view"
	"github.com/rvangils/accountd/internal/krypto"
	"github.com/rvangils/accountd/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Stderr))
}

func run(ctx context.Context, w io.Writer) int {
	logger := slog.New(slog.NewTextHandler(w, nil))

	cfg, err := configFromEnv()
	if err != nil {
		logger.Error("failed to get config from environment", "error", err)
		return 1
	}

	writeDB, err := db.OpenSQLite(cfg.dbFile, true)
	if err != nil {
		logger.Error("failed to open database for writing", "error", err)
		return 1
	}
	defer writeDB.Close()

	if err := dbmigrate.Up(writeDB); err != nil {
		logger.Error("failed to migrate database", "error", err)
		return 1
	}

	readDB, err := db.OpenSQLite(cfg.dbFile, false)
	if err != nil {
		logger.Error("failed to open database for reading", "error", err)
		return 1
	}
	defer readDB.Close()

	encryptor, err := krypto.NewEncryptor(cfg.encryptionKeys)
	if err != nil {
		logger.Error("failed to create encryptor", "error", err)
		return 1
	}

	store := accountdb.New(writeDB, readDB, encryptor, cfg.blindIndexKey)

	sender, err := newSender(logger, cfg.email)
	if err != nil {
		logger.Error("failed to create email sender", "error", err)
		return 1
	}

	emailService := email.NewService(view.NewFSRenderer(assets.EmailFS), sender, cfg.email.from)

	accountService, err := account.NewService(store, emailService, account.ServiceConfig{
		VerifyTokenExpiry: cfg.verifyTokenExpiry,
		ResetTokenExpiry:  cfg.resetTokenExpiry,
		BaseURL:           cfg.baseURL,
	})
	if err != nil {
		logger.Error("failed to create account service", "error", err)
		return 1
	}

	srv := &http.Server{
		Addr:         cfg.http.addr,
		ReadTimeout:  cfg.http.readTimeout,
		WriteTimeout: cfg.http.writeTimeout,
		IdleTimeout:  cfg.http.idleTimeout,
		Handler: web.NewServer(&web.ServerDeps{
			Logger:  logger,
			Service: accountService,
		}),
	}

	// We need to run two tasks concurrently:
	// - Listen and serving of the HTTP server.
	// - Waiting for a signal to stop the server.

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server",
			"addr", cfg.http.addr,
			"buildRevision", internal.BuildRevision,
			"buildRevisionTime", internal.BuildRevisionTime,
			"buildLocalModified", internal.BuildLocalModified,
		)
		// ListenAndServe always returns a non-nil error,
		// g will cancel gCtx when an error is returned, so
		// this will also stop the other goroutine.
		return srv.ListenAndServe()
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("stopping http server")

		shutCtx, cancel := context.WithTimeout(context.Background(), cfg.http.shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutCtx)
	})

	err = g.Wait()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server stopped with error", "error", err)
		return 1
	}

	logger.Info("http server stopped successfully")

	return 0
}

// newSender creates the email sender selected in the configuration.
func newSender(logger *slog.Logger, cfg emailConfig) (email.Sender, error) {
	switch cfg.sender {
	case "log":
		return email.NewLogSender(logger), nil
	case "memory":
		return email.NewMemorySender(), nil
	case "postmark":
		apiURL, err := url.Parse(cfg.postmarkAPIURL)
		if err != nil {
			return nil, fmt.Errorf("invalid postmark API URL: %w", err)
		}

		return postmark.NewSender(http.DefaultClient, postmark.Settings{
			APIURL:        apiURL,
			ServerToken:   cfg.postmarkServerToken,
			MessageStream: cfg.postmarkMessageStream,
		}), nil
	case "mailgun":
		return mailgun.NewSender(http.DefaultClient, mailgun.Settings{
			APIHost:  cfg.mailgunAPIHost,
			Domain:   cfg.mailgunDomain,
			Username: cfg.mailgunUsername,
			Password: string(cfg.mailgunPassword.SecretValue()),
		}), nil
	default:
		return nil, fmt.Errorf("unknown email sender %q", cfg.sender)
	}
}
