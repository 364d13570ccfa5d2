package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dkurganov/passvault/internal/common"
	"github.com/dkurganov/passvault/internal/server/models"
	"github.com/dkurganov/passvault/internal/server/services"
	"github.com/gorilla/mux"
)

type errorResponse struct {
	Error string `json:"error"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Token    string `json:"token,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type confirmRequest struct {
	Token string `json:"token"`
}

type itemRequest struct {
	Title    string `json:"title"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
	URL      string `json:"url"`
	Notes    string `json:"notes"`
}

// itemResponse carries the secret in plaintext: stored ciphertext is opened
// here at the edge, right before it leaves the service. Undecryptable marks
// a record whose stored secret no longer opens; the raw ciphertext is never
// passed off as plaintext.
type itemResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Username      string `json:"username"`
	Secret        string `json:"secret"`
	URL           string `json:"url"`
	Notes         string `json:"notes"`
	Undecryptable bool   `json:"undecryptable,omitempty"`
}

type importRequest struct {
	Bundle     string `json:"bundle,omitempty"`
	ArchiveKey string `json:"archive_key,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps domain sentinels onto HTTP statuses. Messages come
// from the sentinels themselves, so a caller never learns more than the
// service decided to say; anything unrecognized becomes a logged 500.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorUserExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrorInvalidCredentials),
		errors.Is(err, common.ErrorTwoFactorRequired),
		errors.Is(err, common.ErrorInvalidTwoFactorCode):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, common.ErrorTwoFactorAlreadyEnabled):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrorTwoFactorNotProvisioned):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		writeError(w, http.StatusNotFound, common.ErrorNotFound.Error())
	case errors.Is(err, common.ErrorDecryptFailed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorInvalidToken), errors.Is(err, common.ErrRefreshTokenExpired):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		s.logger.Error(r.Context(), "internal error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, common.ErrorInternal.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// --- auth ---

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	s.logger.Info(r.Context(), "user registered", "email", user.Email)
	writeJSON(w, http.StatusCreated, map[string]string{"id": user.ID, "email": user.Email})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, err := s.auth.Login(r.Context(), req.Email, req.Password, req.Token)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeBody(w, r, &req) {
		return
	}

	pair, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// --- two-factor ---

func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	uri, err := s.twoFactor.Provision(r.Context(), owner)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"provisioning_uri": uri})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.twoFactor.Confirm(r.Context(), owner, req.Token); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- vault ---

func (s *Server) itemToResponse(owner string, item *models.VaultItem) itemResponse {
	resp := itemResponse{
		ID:       item.ID,
		Title:    item.Title,
		Username: item.Username,
		URL:      item.URL,
		Notes:    item.Notes,
	}
	secret, err := s.crypto.DecryptField(owner, item.Secret)
	if err != nil {
		resp.Undecryptable = true
		return resp
	}
	resp.Secret = string(secret)
	return resp
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	items, err := s.vault.List(r.Context(), owner)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, s.itemToResponse(owner, it))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	var req itemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ciphertext, err := s.crypto.EncryptField(owner, []byte(req.Secret))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	item := &models.VaultItem{
		Title:    req.Title,
		Username: req.Username,
		Secret:   ciphertext,
		URL:      req.URL,
		Notes:    req.Notes,
	}
	created, err := s.vault.Create(r.Context(), owner, item)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := s.itemToResponse(owner, created)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	item, err := s.vault.Get(r.Context(), owner, mux.Vars(r)["id"])
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.itemToResponse(owner, item))
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	var req itemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ciphertext, err := s.crypto.EncryptField(owner, []byte(req.Secret))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	upd := &models.VaultItemUpdate{
		Title:    req.Title,
		Username: req.Username,
		Secret:   ciphertext,
		URL:      req.URL,
		Notes:    req.Notes,
	}
	item, err := s.vault.Update(r.Context(), owner, mux.Vars(r)["id"], upd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.itemToResponse(owner, item))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	if err := s.vault.Delete(r.Context(), owner, mux.Vars(r)["id"]); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	if r.URL.Query().Get("archive") == "true" {
		key, err := s.vault.ExportToArchive(r.Context(), owner)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"archive_key": key})
		return
	}

	bundle, err := s.vault.Export(r.Context(), owner)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"bundle": base64.StdEncoding.EncodeToString(bundle)})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing token")
		return
	}

	var req importRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var result *services.ImportResult
	var err error
	switch {
	case req.ArchiveKey != "":
		result, err = s.vault.ImportFromArchive(r.Context(), owner, req.ArchiveKey)
	case req.Bundle != "":
		var bundle []byte
		bundle, err = base64.StdEncoding.DecodeString(req.Bundle)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid bundle encoding")
			return
		}
		result, err = s.vault.Import(r.Context(), owner, bundle)
	default:
		writeError(w, http.StatusBadRequest, "bundle or archive_key is required")
		return
	}

	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"imported": result.Imported, "failed": result.Failed})
}
