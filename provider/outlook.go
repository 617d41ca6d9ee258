package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/microsoft"
)

// DefaultOutlookUserInfoURL is the Microsoft Graph profile endpoint.
const DefaultOutlookUserInfoURL = "https://graph.microsoft.com/v1.0/me"

// OutlookConfig configures the Outlook handler.
type OutlookConfig struct {
	OAuth       OAuthConfig
	Tenant      string
	UserInfoURL string
}

// OutlookHandler provisions Microsoft accounts over OAuth.
type OutlookHandler struct {
	*oauthHandler
	userInfoURL string
}

var _ Handler = (*OutlookHandler)(nil)

// NewOutlookHandler builds the Outlook handler.
func NewOutlookHandler(cfg OutlookConfig, deps Deps) *OutlookHandler {
	tenant := cfg.Tenant
	if tenant == "" {
		tenant = "common"
	}
	h := &OutlookHandler{userInfoURL: cfg.UserInfoURL}
	if h.userInfoURL == "" {
		h.userInfoURL = DefaultOutlookUserInfoURL
	}
	h.oauthHandler = newOAuthHandler(Outlook, cfg.OAuth, microsoft.AzureADEndpoint(tenant), []string{
		"offline_access",
		"User.Read",
		"https://outlook.office.com/IMAP.AccessAsUser.All",
		"https://outlook.office.com/SMTP.Send",
	}, deps, h.userEmail)
	return h
}

func (h *OutlookHandler) userEmail(ctx context.Context, client *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.userInfoURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &httpStatusError{code: resp.StatusCode, url: h.userInfoURL}
	}
	var profile struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", fmt.Errorf("provider: decode user info: %w", err)
	}
	if profile.Mail != "" {
		return profile.Mail, nil
	}
	return profile.UserPrincipalName, nil
}
