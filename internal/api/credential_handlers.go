package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/secutel/netmanager/internal/crypto"
	"github.com/secutel/netmanager/internal/data"
)

// CredentialHandler manages NVR logins. Passwords arrive plaintext in the
// request body, are vault-sealed before they touch the database, and never
// appear in any response.
type CredentialHandler struct {
	Creds data.CredentialModel
	Vault *crypto.Vault
}

func NewCredentialHandler(creds data.CredentialModel, vault *crypto.Vault) *CredentialHandler {
	return &CredentialHandler{Creds: creds, Vault: vault}
}

type credentialRequest struct {
	SiteID     int64  `json:"site_id"`
	RecorderID *int64 `json:"recorder_id"`
	Label      string `json:"label"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	Active     *bool  `json:"active"`
}

func (h *CredentialHandler) List(w http.ResponseWriter, r *http.Request) {
	siteID, ok := queryInt64(r, "site_id")
	if !ok {
		respondError(w, http.StatusBadRequest, "site_id is required")
		return
	}
	creds, err := h.Creds.ListBySite(r.Context(), siteID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list credentials")
		return
	}
	respondJSON(w, http.StatusOK, creds)
}

func (h *CredentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.SiteID <= 0 || req.Host == "" || req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "site_id, host, username and password are required")
		return
	}
	if req.Port == 0 {
		req.Port = 80
	}

	enc, err := h.Vault.Encrypt(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to seal password")
		return
	}
	cred := &data.NvrCredential{
		SiteID:      req.SiteID,
		RecorderID:  req.RecorderID,
		Label:       req.Label,
		Host:        req.Host,
		Port:        req.Port,
		Username:    req.Username,
		PasswordEnc: enc,
		Active:      req.Active == nil || *req.Active,
	}
	if err := h.Creds.Insert(r.Context(), cred); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create credential")
		return
	}
	respondJSON(w, http.StatusCreated, cred)
}

func (h *CredentialHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid body")
		return
	}

	// Empty password keeps the stored one.
	enc := ""
	if req.Password != "" {
		enc, err = h.Vault.Encrypt(req.Password)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to seal password")
			return
		}
	}
	cred := &data.NvrCredential{
		ID:          id,
		Label:       req.Label,
		Host:        req.Host,
		Port:        req.Port,
		Username:    req.Username,
		PasswordEnc: enc,
		Active:      req.Active == nil || *req.Active,
	}
	if err := h.Creds.Update(r.Context(), cred); err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "credential not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update credential")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *CredentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if err := h.Creds.Delete(r.Context(), id); err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "credential not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete credential")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
