package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-gateway/accounts"
	"github.com/jrsteele09/go-auth-gateway/accounts/postgres"
	"github.com/jrsteele09/go-auth-gateway/accounts/redisstore"
	fakeaccountstore "github.com/jrsteele09/go-auth-gateway/accounts/repofake"
	"github.com/jrsteele09/go-auth-gateway/auth"
	"github.com/jrsteele09/go-auth-gateway/internal/config"
	"github.com/jrsteele09/go-auth-gateway/internal/logging"
	"github.com/jrsteele09/go-auth-gateway/server"
	"github.com/jrsteele09/go-auth-gateway/token"
	"github.com/rs/zerolog/log"
)

const startupTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	logging.Setup(c.GetEnv(), c.GetLogLevel())
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	hasher, err := accounts.NewPasswordHasher(c.GetPasswordHasher(), c.GetBcryptCost())
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}

	store, closeStore, err := openStore(ctx, c, hasher)
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	defer closeStore.Close()

	signer, err := newSigner(c)
	if err != nil {
		return fmt.Errorf("signer: %w", err)
	}
	signingConfig, err := token.NewSigningConfig(c.GetJWTIssuer(), c.GetJWTAudience(), signer, c.GetJWTExpirationSeconds())
	if err != nil {
		return fmt.Errorf("signing config: %w", err)
	}

	issuer, err := token.NewIssuer(store, signingConfig)
	if err != nil {
		return fmt.Errorf("token issuer: %w", err)
	}
	verifier, err := token.NewVerifier(signingConfig, token.WithLeeway(5*time.Second))
	if err != nil {
		return fmt.Errorf("token verifier: %w", err)
	}

	accountService, err := auth.NewAccountService(store, issuer)
	if err != nil {
		return fmt.Errorf("account service: %w", err)
	}

	handler, err := server.New(c, accountService, verifier, signer)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- listenAndServe(srv)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-waitForStopSignal():
	}
	returnError = shutdown(srv)
	return returnError
}

// openStore selects the credential store named by STORE_DRIVER. The
// returned closer releases the underlying connection.
func openStore(ctx context.Context, c config.Config, hasher accounts.PasswordHasher) (accounts.Store, io.Closer, error) {
	switch c.GetStoreDriver() {
	case config.StoreDriverPostgres:
		db, err := postgres.Open(ctx, c.GetDatabaseDSN())
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		store, err := postgres.NewStore(db, hasher)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		log.Info().Msg("Using postgres credential store")
		return store, db, nil

	case config.StoreDriverRedis:
		client, err := redisstore.Open(ctx, c.GetRedisAddr(), c.GetRedisPassword(), c.GetRedisDB())
		if err != nil {
			return nil, nil, err
		}
		store, err := redisstore.NewStore(client, hasher)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		log.Info().Str("addr", c.GetRedisAddr()).Msg("Using redis credential store")
		return store, client, nil

	case config.StoreDriverMemory:
		log.Warn().Msg("Using in-memory credential store for development only, accounts are lost on restart")
		return fakeaccountstore.NewFakeAccountStore(hasher), io.NopCloser(nil), nil
	}
	return nil, nil, fmt.Errorf("unsupported store driver %q", c.GetStoreDriver())
}

func newSigner(c config.TokenConfig) (token.Signer, error) {
	settings := token.SignerSettings{
		Algorithm: c.GetJWTSigningAlg(),
		Secret:    c.GetJWTSecret(),
		KeyID:     c.GetJWTKeyID(),
	}
	if path := c.GetJWTPrivateKeyFile(); path != "" {
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		settings.PrivateKeyPEM = string(pem)
	}
	return token.NewSigner(settings)
}

func listenAndServe(server *http.Server) error {
	log.Info().Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
