package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/prompt-library/internal/auth"
	"github.com/sakif/prompt-library/internal/service"
)

// maxImportBytes caps the size of an uploaded library dump.
const maxImportBytes = 10 << 20

// UserHandler serves the account settings page: profile, password,
// statistics, export/import and account deletion.
type UserHandler struct {
	users    *service.UserService
	transfer *service.TransferService
	logger   *slog.Logger
}

func NewUserHandler(users *service.UserService, transfer *service.TransferService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, transfer: transfer, logger: logger}
}

type profileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Bio   string `json:"bio"`
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// HandleUpdateProfile replaces name, email and bio.
//
// HTTP: PUT /api/user/profile
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), uid, service.ProfileInput{
		Name:  req.Name,
		Email: req.Email,
		Bio:   req.Bio,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// HandleChangePassword checks the current password and sets a new one.
//
// HTTP: PUT /api/user/password
func (h *UserHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req passwordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.users.ChangePassword(r.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

// HandleStats returns the account summary.
//
// HTTP: GET /api/user/stats
func (h *UserHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	stats, err := h.users.Stats(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleActivity lists the caller's recent changes from the audit log.
//
// HTTP: GET /api/user/activity?limit=50
func (h *UserHandler) HandleActivity(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit, err := intParam(r.URL.Query().Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}

	entries, err := h.users.Activity(r.Context(), uid, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleExport downloads the caller's whole library as a JSON attachment.
//
// HTTP: GET /api/user/export
//
// The dump is encoded into a buffer first so an encoding failure can
// still be reported as a proper error response.
func (h *UserHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	dump, err := h.transfer.Export(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := service.EncodeDump(&buf, dump, "json"); err != nil {
		writeError(w, err)
		return
	}

	filename := fmt.Sprintf("prompts-export-%s.json", dump.ExportedAt.Format(time.DateOnly))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("export: writing response failed", slog.String("error", err.Error()))
	}
}

// HandleImport merges an uploaded dump into the caller's library.
//
// HTTP: POST /api/user/import?format=json|yaml
func (h *UserHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	dump, err := service.DecodeDump(r.Body, r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.transfer.Import(r.Context(), uid, dump)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleDeleteAccount removes the caller's account with all of its data
// and clears the session cookie.
//
// HTTP: DELETE /api/user
func (h *UserHandler) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.users.DeleteAccount(r.Context(), uid); err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}
