package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/prompt-library/internal/auth"
	"github.com/sakif/prompt-library/internal/category"
	"github.com/sakif/prompt-library/internal/config"
	"github.com/sakif/prompt-library/internal/optimizer"
	sqliteRepo "github.com/sakif/prompt-library/internal/repository/sqlite"
	"github.com/sakif/prompt-library/internal/search"
	"github.com/sakif/prompt-library/internal/service"
	"github.com/sakif/prompt-library/internal/versioning"
)

// Services is the assembled application below the HTTP layer. The HTTP
// server and the CLI's export/import commands share it.
//
// DEPENDENCY CHAIN:
//
//	sqlite.DB ──┬─> versioning.Store ─┐
//	            ├─> (repositories) ───┼─> PromptService ─┬─> UserService
//	search.Index ─────────────────────┘                  └─> TransferService
//	auth.TokenService + PasswordService ──> AuthService
//	optimizer.Client ──> OptimizeService
type Services struct {
	DB     *sqliteRepo.DB
	Index  *search.Index
	Tokens *auth.TokenService
	GitHub *auth.GitHubProvider // nil when GitHub sign-in is not configured

	Prompts  *service.PromptService
	Auth     *service.AuthService
	Users    *service.UserService
	Transfer *service.TransferService
	Optimize *service.OptimizeService
}

// OpenServices opens storage and builds every service from cfg. Close
// releases what it opened.
func OpenServices(cfg *config.Config, logger *slog.Logger) (*Services, error) {
	if cfg.Database.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Database.Path)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dbDir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	idx, err := search.Open(cfg.Search.IndexPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening search index: %w", err)
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			db.Close()
			idx.Close()
			return nil, err
		}
		logger.Warn("auth.jwt_secret not set, using a random secret; sessions end when the server restarts")
	}
	tokens, err := auth.NewTokenService(secret, cfg.Auth.TokenTTL)
	if err != nil {
		db.Close()
		idx.Close()
		return nil, err
	}
	passwords := auth.NewPasswordService()

	var github *auth.GitHubProvider
	if cfg.Auth.GitHub.Enabled() {
		gh := cfg.Auth.GitHub
		github = auth.NewGitHubProvider(gh.ClientID, gh.ClientSecret, gh.CallbackURL)
	}

	store := versioning.NewStore(db, logger,
		versioning.WithStrictPointerUpdates(cfg.Versioning.StrictPointerUpdates),
	)
	prompts := service.NewPromptService(store, db, db, idx, category.New(cfg.Categories), logger)

	opt := optimizer.New(optimizer.Config{
		APIKey:      cfg.Optimizer.APIKey,
		BaseURL:     cfg.Optimizer.BaseURL,
		Model:       cfg.Optimizer.Model,
		Temperature: cfg.Optimizer.Temperature,
		Attempts:    cfg.Optimizer.Attempts,
	}, logger)
	if !opt.Configured() {
		logger.Warn("optimizer.api_key not set, /api/ai/optimize will return 503")
	}

	return &Services{
		DB:       db,
		Index:    idx,
		Tokens:   tokens,
		GitHub:   github,
		Prompts:  prompts,
		Auth:     service.NewAuthService(db, tokens, passwords, logger),
		Users:    service.NewUserService(db, passwords, prompts, logger),
		Transfer: service.NewTransferService(db, prompts, logger),
		Optimize: service.NewOptimizeService(opt, logger),
	}, nil
}

// Close closes the search index and the database.
func (s *Services) Close() error {
	return errors.Join(s.Index.Close(), s.DB.Close())
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
