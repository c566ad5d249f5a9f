package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"log"
	"log/slog"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"
	"golang.org/x/oauth2"

	"leadrelay/internal/config"
	"leadrelay/internal/middleware"
)

// AuthHandler handles OIDC authentication flows for staff.
type AuthHandler struct {
	provider     *oidc.Provider
	oauth2Config oauth2.Config
	verifier     *oidc.IDTokenVerifier
	cfg          *config.Config
}

// NewAuthHandler creates a new auth handler with OIDC configuration.
func NewAuthHandler(ctx context.Context, cfg *config.Config) (*AuthHandler, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, err
	}

	oauth2Config := oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})

	return &AuthHandler{
		provider:     provider,
		oauth2Config: oauth2Config,
		verifier:     verifier,
		cfg:          cfg,
	}, nil
}

// LoginPage renders the staff sign-in page.
func (h *AuthHandler) LoginPage(c fiber.Ctx) error {
	return c.Render("login", MergeBranding(fiber.Map{
		"Title": "Staff sign in",
	}, h.cfg))
}

// Login initiates the OIDC login flow.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	state := generateState()

	sess := session.FromContext(c)
	if sess == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "session not available")
	}
	sess.Set("oauth_state", state)

	url := h.oauth2Config.AuthCodeURL(state)
	return c.Redirect().To(url)
}

// Callback handles the OIDC callback after authentication.
func (h *AuthHandler) Callback(c fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "session not available")
	}

	// Verify state
	savedState, _ := sess.Get("oauth_state").(string)
	if savedState == "" || savedState != c.Query("state") {
		return fiber.NewError(fiber.StatusBadRequest, "invalid state")
	}
	sess.Delete("oauth_state")

	// Exchange code for token
	oauth2Token, err := h.oauth2Config.Exchange(c.Context(), c.Query("code"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to exchange code")
	}

	// Extract and verify ID token
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "missing id_token")
	}

	idToken, err := h.verifier.Verify(c.Context(), rawIDToken)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id_token")
	}

	claims := make(map[string]any)
	if err := idToken.Claims(&claims); err != nil {
		return err
	}

	// Some providers only put the email in userinfo.
	if _, ok := claims["email"].(string); !ok {
		userInfo, err := h.provider.UserInfo(c.Context(), oauth2.StaticTokenSource(oauth2Token))
		if err == nil {
			var userInfoClaims map[string]any
			if err := userInfo.Claims(&userInfoClaims); err == nil {
				for k, v := range userInfoClaims {
					claims[k] = v
				}
			}
		} else {
			log.Printf("Warning: Failed to fetch userinfo: %v", err)
		}
	}

	email, err := verifiedEmail(claims)
	if err != nil {
		return err
	}

	if !h.cfg.IsStaffEmail(email) {
		slog.Warn("staff login rejected", "email", email)
		sess.Destroy()
		return fiber.NewError(fiber.StatusForbidden, "This account is not allowed to access the staff dashboard")
	}

	sess.Set(middleware.SessionEmailKey, email)
	slog.Info("staff login", "email", email)

	// Redirect to original URL if stored, otherwise the dashboard
	redirectURL := "/admin"
	if saved, ok := sess.Get(middleware.SessionRedirectKey).(string); ok && strings.HasPrefix(saved, "/") && !strings.HasPrefix(saved, "//") {
		redirectURL = saved
	}
	sess.Delete(middleware.SessionRedirectKey)

	return c.Redirect().To(redirectURL)
}

// Logout clears the staff session.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess != nil {
		sess.Destroy()
	}
	return c.Redirect().To("/login")
}

// verifiedEmail extracts the email claim, rejecting addresses the provider
// explicitly marks as unverified.
func verifiedEmail(claims map[string]any) (string, error) {
	email, _ := claims["email"].(string)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "identity provider returned no email")
	}
	if verified, ok := claims["email_verified"].(bool); ok && !verified {
		return "", fiber.NewError(fiber.StatusForbidden, "email address is not verified")
	}
	return email, nil
}

func generateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
