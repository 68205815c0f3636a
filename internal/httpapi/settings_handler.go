package httpapi

import (
	"errors"
	"net/http"

	"travelmate/internal/models"
	"travelmate/internal/settings"
	"travelmate/internal/utils"
)

// settingsResponse never carries the credential itself, only a fingerprint
type settingsResponse struct {
	Enabled               bool   `json:"enabled"`
	Provider              string `json:"provider"`
	Model                 string `json:"model,omitempty"`
	Endpoint              string `json:"endpoint,omitempty"`
	HasCredential         bool   `json:"has_credential"`
	CredentialFingerprint string `json:"credential_fingerprint,omitempty"`
}

type credentialRequest struct {
	APIKey   string `json:"api_key"`
	Provider string `json:"provider"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type providerRequest struct {
	Provider string `json:"provider"`
}

type connectionTestRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

type connectionTestResponse struct {
	OK bool `json:"ok"`
}

func (d *Dependencies) settingsView() settingsResponse {
	snap := d.Settings.Snapshot()
	return settingsResponse{
		Enabled:               snap.Enabled,
		Provider:              string(snap.Provider),
		Model:                 snap.Settings.Model,
		Endpoint:              snap.Settings.Endpoint,
		HasCredential:         snap.Settings.HasCredential(),
		CredentialFingerprint: utils.Fingerprint(snap.Settings.Credential),
	}
}

// handleSettings handles GET /api/settings
func (d *Dependencies) handleSettings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, d.settingsView())
}

// handleSettingsCredential handles PUT /api/settings/credential
func (d *Dependencies) handleSettingsCredential(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req credentialRequest
	if err := decodeBody(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	err := d.Settings.SetCredential(r.Context(), req.APIKey, models.ProviderType(req.Provider))
	switch {
	case errors.Is(err, settings.ErrEmptyCredential):
		utils.RespondWithError(w, http.StatusBadRequest, "api_key is required")
		return
	case errors.Is(err, settings.ErrUnknownProvider):
		utils.RespondWithError(w, http.StatusBadRequest, "Unknown provider")
		return
	case err != nil:
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save credential")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, d.settingsView())
}

// handleSettingsEnabled handles PUT /api/settings/enabled
func (d *Dependencies) handleSettingsEnabled(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req enabledRequest
	if err := decodeBody(w, r, &req); err != nil || req.Enabled == nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := d.Settings.SetEnabled(r.Context(), *req.Enabled); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save setting")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, d.settingsView())
}

// handleSettingsProvider handles PUT /api/settings/provider
func (d *Dependencies) handleSettingsProvider(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req providerRequest
	if err := decodeBody(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ok, err := d.Settings.SetActiveProvider(r.Context(), req.Provider)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to save provider")
		return
	}
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Unknown provider")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, d.settingsView())
}

// handleSettingsTest handles POST /api/settings/test. An empty provider
// tests the active one; an empty api_key tests the stored credential.
func (d *Dependencies) handleSettingsTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req connectionTestRequest
	if err := decodeBody(w, r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	provider := models.ProviderType(req.Provider)
	if provider == "" {
		provider = d.Settings.ActiveProvider()
	}
	if !provider.Valid() {
		utils.RespondWithError(w, http.StatusBadRequest, "Unknown provider")
		return
	}

	ok := d.Settings.TestConnection(r.Context(), provider, req.APIKey)
	utils.RespondWithJSON(w, http.StatusOK, connectionTestResponse{OK: ok})
}
