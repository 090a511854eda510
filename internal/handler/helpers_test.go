package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/prompt-library/internal/auth"
	"github.com/sakif/prompt-library/internal/category"
	"github.com/sakif/prompt-library/internal/handler"
	"github.com/sakif/prompt-library/internal/model"
	"github.com/sakif/prompt-library/internal/repository/sqlite"
	"github.com/sakif/prompt-library/internal/search"
	"github.com/sakif/prompt-library/internal/service"
	"github.com/sakif/prompt-library/internal/versioning"
)

// testEnv wires the real services over an in-memory database so handler
// tests exercise the full request path below the router.
type testEnv struct {
	authSvc  *service.AuthService
	tokens   *auth.TokenService
	auth     *handler.AuthHandler
	prompts  *handler.PromptHandler
	users    *handler.UserHandler
	optimize *handler.OptimizeHandler
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, opt service.Optimizer) *testEnv {
	t.Helper()
	logger := quietLogger()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	idx, err := search.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(4)

	promptSvc := service.NewPromptService(
		versioning.NewStore(db, logger),
		db, db, idx,
		category.New(category.DefaultTable()),
		logger,
	)
	authSvc := service.NewAuthService(db, tokens, passwords, logger)
	userSvc := service.NewUserService(db, passwords, promptSvc, logger)
	transferSvc := service.NewTransferService(db, promptSvc, logger)

	github := auth.NewGitHubProvider("client-id", "client-secret", "http://localhost:8080/auth/github/callback")

	return &testEnv{
		authSvc:  authSvc,
		tokens:   tokens,
		auth:     handler.NewAuthHandler(authSvc, github, tokens, logger),
		prompts:  handler.NewPromptHandler(promptSvc, logger),
		users:    handler.NewUserHandler(userSvc, transferSvc, logger),
		optimize: handler.NewOptimizeHandler(service.NewOptimizeService(opt, logger), logger),
	}
}

// register creates a password account and returns its ID.
func (e *testEnv) register(t *testing.T, username string) string {
	t.Helper()
	u, err := e.authSvc.Register(context.Background(), service.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	return u.ID
}

// call invokes h directly. userID, when set, is placed in the context the
// way auth.RequireAuth would; pathValues are name/value pairs for
// r.PathValue.
func call(h http.HandlerFunc, method, target, body, userID string, pathValues ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	for i := 0; i+1 < len(pathValues); i += 2 {
		req.SetPathValue(pathValues[i], pathValues[i+1])
	}

	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out), "body: %s", rr.Body.String())
	return out
}

func createPrompt(t *testing.T, e *testEnv, userID, body string) model.PromptView {
	t.Helper()
	rr := call(e.prompts.HandleCreate, http.MethodPost, "/api/prompts", body, userID)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[model.PromptView](t, rr)
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
