// Package oauthsvc signs users in with third party identity providers.
package oauthsvc

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

const (
	ProviderGoogle    = "google"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

var (
	ErrDisabled        = errors.New("google sign in is not configured")
	ErrEmailUnverified = errors.New("google account email is not verified")
)

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Google exchanges OAuth2 authorization codes for Google identities.
type Google struct {
	oauth       *oauth2.Config
	userInfoURL string
	enabled     bool
}

func NewGoogle(conf *core.Config) *Google {
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     conf.Google.ClientID,
			ClientSecret: conf.Google.ClientSecret,
			RedirectURL:  conf.Google.RedirectURL,
			Endpoint:     endpoints.Google,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
		enabled:     conf.Google.OAuthEnabled(),
	}
}

func (g *Google) Enabled() bool { return g.enabled }

// AuthCodeURL returns the consent page URL; `state` is echoed back to the callback.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the identity of the Google user.
func (g *Google) Exchange(ctx context.Context, code string) (user.ExternalIdentity, error) {
	if !g.enabled {
		return user.ExternalIdentity{}, ErrDisabled
	}
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return user.ExternalIdentity{}, errors.Wrap(err, "exchanging code")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return user.ExternalIdentity{}, errors.Wrap(err, "building userinfo request")
	}
	res, err := g.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return user.ExternalIdentity{}, errors.Wrap(err, "fetching userinfo")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		return user.ExternalIdentity{}, errors.Errorf("userinfo responded with status %d", res.StatusCode)
	}
	var info googleUserInfo
	if err = json.NewDecoder(res.Body).Decode(&info); err != nil {
		return user.ExternalIdentity{}, errors.Wrap(err, "decoding userinfo")
	}
	if !info.EmailVerified {
		return user.ExternalIdentity{}, ErrEmailUnverified
	}

	return user.ExternalIdentity{
		Provider:  ProviderGoogle,
		Subject:   info.Sub,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	}, nil
}
