package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"nutri-planner/config"
	"nutri-planner/models"
)

const googleUserInfo = "https://www.googleapis.com/oauth2/v3/userinfo"

// Google signs patients in with their Google account.
type Google struct {
	oauth       *oauth2.Config
	manager     *Manager
	log         *zap.Logger
	userInfoURL string
}

func NewGoogle(cfg config.GoogleConfig, m *Manager, log *zap.Logger) *Google {
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
				"openid",
			},
			Endpoint: google.Endpoint,
		},
		manager:     m,
		log:         log,
		userInfoURL: googleUserInfo,
	}
}

func (g *Google) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// SignIn exchanges an authorization code and opens a session for the
// Google account behind it.
func (g *Google) SignIn(ctx context.Context, code string) (*models.Session, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	profile, err := g.fetchProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if !profile.EmailVerified {
		g.log.Warn("google sign-in with unverified email", zap.String("sub", profile.Sub))
		return nil, fmt.Errorf("google email not verified: %w", models.ErrForbidden)
	}
	g.log.Info("google sign-in", zap.String("sub", profile.Sub))
	return g.manager.LoginExternal(ctx, profile.Email, profile.Name)
}

type googleProfile struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
}

func (g *Google) fetchProfile(ctx context.Context, token *oauth2.Token) (*googleProfile, error) {
	resp, err := g.oauth.Client(ctx, token).Get(g.userInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %s", resp.Status)
	}

	var p googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}
	if p.Sub == "" || p.Email == "" {
		return nil, fmt.Errorf("userinfo missing id or email")
	}
	if p.Name == "" {
		p.Name = p.GivenName
	}
	return &p, nil
}

// GenerateState returns a random value for the OAuth state cookie.
func GenerateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
