package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/adampresley/imagecaptioning/pkg/models"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	DefaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

type GoogleProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint and UserInfoURL default to Google's.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

/*
GoogleProvider is the federated sign-in flow. The browser is sent to
AuthURL and comes back to the callback with a code, which Exchange
turns into a verified FederatedIdentity.
*/
type GoogleProvider struct {
	oauthConfig *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(config GoogleProviderConfig) *GoogleProvider {
	endpoint := config.Endpoint

	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}

	userInfoURL := config.UserInfoURL

	if userInfoURL == "" {
		userInfoURL = DefaultGoogleUserInfoURL
	}

	return &GoogleProvider{
		oauthConfig: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
	}
}

func (p *GoogleProvider) Enabled() bool {
	return p != nil && p.oauthConfig.ClientID != ""
}

func (p *GoogleProvider) AuthURL(state string) string {
	return p.oauthConfig.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

func NewState() string {
	return uuid.NewString()
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (FederatedIdentity, error) {
	var (
		err     error
		token   *oauth2.Token
		resp    *http.Response
		profile struct {
			Sub           string `json:"sub"`
			Email         string `json:"email"`
			EmailVerified bool   `json:"email_verified"`
			Name          string `json:"name"`
		}
	)

	if strings.TrimSpace(code) == "" {
		return FederatedIdentity{}, NewError(CodeProviderError, "missing authorization code")
	}

	if token, err = p.oauthConfig.Exchange(ctx, code); err != nil {
		return FederatedIdentity{}, WrapError(CodeNetworkRequestFailed, "unable to exchange authorization code", err)
	}

	client := p.oauthConfig.Client(ctx, token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return FederatedIdentity{}, WrapError(CodeInternal, "unable to build user info request", err)
	}

	if resp, err = client.Do(req); err != nil {
		return FederatedIdentity{}, WrapError(CodeNetworkRequestFailed, "unable to fetch user info", err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return FederatedIdentity{}, NewError(CodeProviderError, fmt.Sprintf("user info returned status %d: %s", resp.StatusCode, string(body)))
	}

	if err = json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return FederatedIdentity{}, WrapError(CodeProviderError, "unable to decode user info", err)
	}

	if profile.Sub == "" || profile.Email == "" {
		return FederatedIdentity{}, NewError(CodeProviderError, "user info is missing subject or email")
	}

	if !profile.EmailVerified {
		return FederatedIdentity{}, NewError(CodeProviderError, "email address is not verified")
	}

	return FederatedIdentity{
		Provider:    models.ProviderGoogle,
		Subject:     profile.Sub,
		Email:       strings.ToLower(profile.Email),
		DisplayName: profile.Name,
	}, nil
}
