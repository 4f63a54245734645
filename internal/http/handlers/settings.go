package handlers

import (
	"net/http"

	"videokit/internal/domain"
	"videokit/internal/preferences"
)

type apiKeyStatus struct {
	Configured bool   `json:"configured"`
	Masked     string `json:"masked,omitempty"`
	Source     string `json:"source,omitempty"`
}

type apiKeyRequest struct {
	APIKey string `json:"apiKey"`
}

type orientationBody struct {
	Orientation domain.Orientation `json:"orientation"`
}

// GetAPIKey reports whether a provider key is available. The environment key wins over the
// stored one, matching how the provider client resolves it.
func (a *App) GetAPIKey(w http.ResponseWriter, r *http.Request) {
	a.writeAPIKeyStatus(w, r)
}

func (a *App) PutAPIKey(w http.ResponseWriter, r *http.Request) {
	var req apiKeyRequest
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Preferences.SetAPIKey(r.Context(), req.APIKey); err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeAPIKeyStatus(w, r)
}

func (a *App) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := a.Preferences.ClearAPIKey(r.Context()); err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeAPIKeyStatus(w, r)
}

func (a *App) writeAPIKeyStatus(w http.ResponseWriter, r *http.Request) {
	if a.Config != nil && a.Config.KieAPIKey != "" {
		a.json(w, http.StatusOK, apiKeyStatus{
			Configured: true,
			Masked:     preferences.Mask(a.Config.KieAPIKey),
			Source:     "env",
		})
		return
	}
	ok, masked, err := a.Preferences.MaskedAPIKey(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	status := apiKeyStatus{Configured: ok, Masked: masked}
	if ok {
		status.Source = "stored"
	}
	a.json(w, http.StatusOK, status)
}

func (a *App) GetOrientation(w http.ResponseWriter, r *http.Request) {
	o, err := a.Preferences.Orientation(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, orientationBody{Orientation: o})
}

func (a *App) PutOrientation(w http.ResponseWriter, r *http.Request) {
	var req orientationBody
	if err := a.decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.Preferences.SetOrientation(r.Context(), req.Orientation); err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, req)
}
