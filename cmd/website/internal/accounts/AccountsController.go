package accounts

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/adamgokit/sessions"
	internalmodels "github.com/adampresley/imagecaptioning/cmd/website/internal/models"
	"github.com/adampresley/imagecaptioning/cmd/website/internal/viewmodels"
	"github.com/adampresley/imagecaptioning/pkg/identity"
)

type AccountsHandlers interface {
	LoginPage(w http.ResponseWriter, r *http.Request)
	LoginAction(w http.ResponseWriter, r *http.Request)
	SignupPage(w http.ResponseWriter, r *http.Request)
	SignupAction(w http.ResponseWriter, r *http.Request)
	GoogleStart(w http.ResponseWriter, r *http.Request)
	GoogleCallback(w http.ResponseWriter, r *http.Request)
	LogoutAction(w http.ResponseWriter, r *http.Request)
}

// SignedOutListener is told when a user logs out so per-user state can be dropped.
type SignedOutListener interface {
	Delete(userID uint)
}

// WelcomeMailer greets newly created accounts.
type WelcomeMailer interface {
	SendWelcome(toName, toEmail string) error
}

type AccountsControllerConfig struct {
	GoogleProvider    *identity.GoogleProvider
	OAuthStateSession sessions.Session[*internalmodels.OAuthState]
	Renderer          rendering.TemplateRenderer
	SignedOutListener SignedOutListener
	WelcomeMailer     WelcomeMailer
}

type AccountsController struct {
	googleProvider    *identity.GoogleProvider
	oauthStateSession sessions.Session[*internalmodels.OAuthState]
	renderer          rendering.TemplateRenderer
	signedOutListener SignedOutListener
	welcomeMailer     WelcomeMailer
}

func NewAccountsController(config AccountsControllerConfig) AccountsController {
	return AccountsController{
		googleProvider:    config.GoogleProvider,
		oauthStateSession: config.OAuthStateSession,
		renderer:          config.Renderer,
		signedOutListener: config.SignedOutListener,
		welcomeMailer:     config.WelcomeMailer,
	}
}

/*
GET /
GET /login
*/
func (c AccountsController) LoginPage(w http.ResponseWriter, r *http.Request) {
	viewData := viewmodels.Login{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx: httphelpers.IsHtmx(r),
		},
		GoogleEnabled: c.googleProvider.Enabled(),
	}

	c.renderer.Render("pages/login", viewData, w)
}

/*
POST /login
*/
func (c AccountsController) LoginAction(w http.ResponseWriter, r *http.Request) {
	pageName := "pages/login"

	viewData := viewmodels.Login{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx: httphelpers.IsHtmx(r),
		},
		Email:         strings.TrimSpace(httphelpers.GetFromRequest[string](r, "email")),
		GoogleEnabled: c.googleProvider.Enabled(),
	}

	password := httphelpers.GetFromRequest[string](r, "password")
	client := viewmodels.GetIdentityClientFromContext(r)

	if client == nil {
		slog.Error("no identity client on request", "path", r.URL.Path)
		viewData.IsError = true
		viewData.Message = "An unexpected error occurred. Please try again."

		c.renderer.Render(pageName, viewData, w)
		return
	}

	if _, err := client.SignInWithPassword(r.Context(), viewData.Email, password); err != nil {
		slog.Info("login failed", "email", viewData.Email, "code", identity.CodeOf(err), "error", err)
		viewData.IsError = true
		viewData.Message = identity.UserMessage("Login", err)

		c.renderer.Render(pageName, viewData, w)
		return
	}

	http.Redirect(w, r, "/home", http.StatusFound)
}

/*
GET /signup
*/
func (c AccountsController) SignupPage(w http.ResponseWriter, r *http.Request) {
	viewData := viewmodels.Signup{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx: httphelpers.IsHtmx(r),
		},
		GoogleEnabled: c.googleProvider.Enabled(),
	}

	c.renderer.Render("pages/signup", viewData, w)
}

/*
POST /signup
*/
func (c AccountsController) SignupAction(w http.ResponseWriter, r *http.Request) {
	pageName := "pages/signup"

	viewData := viewmodels.Signup{
		BaseViewModel: viewmodels.BaseViewModel{
			IsHtmx: httphelpers.IsHtmx(r),
		},
		Email:         strings.TrimSpace(httphelpers.GetFromRequest[string](r, "email")),
		GoogleEnabled: c.googleProvider.Enabled(),
	}

	password := httphelpers.GetFromRequest[string](r, "password")
	confirmPassword := httphelpers.GetFromRequest[string](r, "confirmPassword")

	if password != confirmPassword {
		viewData.IsWarning = true
		viewData.Message = "Passwords do not match!"

		c.renderer.Render(pageName, viewData, w)
		return
	}

	client := viewmodels.GetIdentityClientFromContext(r)

	if client == nil {
		slog.Error("no identity client on request", "path", r.URL.Path)
		viewData.IsError = true
		viewData.Message = "An unexpected error occurred. Please try again."

		c.renderer.Render(pageName, viewData, w)
		return
	}

	session, err := client.CreateAccount(r.Context(), viewData.Email, password)

	if err != nil {
		slog.Info("signup failed", "email", viewData.Email, "code", identity.CodeOf(err), "error", err)
		viewData.IsError = true
		viewData.Message = identity.UserMessage("Signup", err)

		c.renderer.Render(pageName, viewData, w)
		return
	}

	c.sendWelcome(session.Name(), session.Email)
	http.Redirect(w, r, "/home", http.StatusFound)
}

/*
GET /auth/google
*/
func (c AccountsController) GoogleStart(w http.ResponseWriter, r *http.Request) {
	state := &internalmodels.OAuthState{
		State: identity.NewState(),
		Mode:  internalmodels.OAuthModeLogin,
	}

	if httphelpers.GetFromRequest[string](r, "mode") == internalmodels.OAuthModeSignup {
		state.Mode = internalmodels.OAuthModeSignup
	}

	if !c.googleProvider.Enabled() {
		c.renderGoogleError(w, r, state, "Google sign-in is not configured.")
		return
	}

	if err := c.oauthStateSession.Set(r, state); err != nil {
		slog.Error("error setting oauth state", "error", err)
	}

	if err := c.oauthStateSession.Save(w, r); err != nil {
		slog.Error("error saving oauth state", "error", err)
		c.renderGoogleError(w, r, state, "Could not start Google sign-in. Please try again.")
		return
	}

	http.Redirect(w, r, c.googleProvider.AuthURL(state.State), http.StatusFound)
}

/*
GET /auth/google/callback
*/
func (c AccountsController) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	var (
		err       error
		state     *internalmodels.OAuthState
		federated identity.FederatedIdentity
	)

	if state, err = c.oauthStateSession.Get(r); err != nil || state == nil {
		slog.Warn("oauth callback without state", "error", err)
		c.renderGoogleError(w, r, state, "Google sign-in expired. Please try again.")
		return
	}

	_ = c.oauthStateSession.Destroy(w, r)
	_ = c.oauthStateSession.Save(w, r)

	if providerError := httphelpers.GetFromRequest[string](r, "error"); providerError != "" {
		c.renderGoogleError(w, r, state, identity.UserMessage(state.Action(), identity.NewError(identity.CodeProviderError, providerError)))
		return
	}

	if httphelpers.GetFromRequest[string](r, "state") != state.State {
		slog.Warn("oauth state mismatch")
		c.renderGoogleError(w, r, state, "Google sign-in expired. Please try again.")
		return
	}

	if federated, err = c.googleProvider.Exchange(r.Context(), httphelpers.GetFromRequest[string](r, "code")); err != nil {
		slog.Error("error exchanging google authorization code", "error", err)
		c.renderGoogleError(w, r, state, identity.UserMessage(state.Action(), err))
		return
	}

	client := viewmodels.GetIdentityClientFromContext(r)

	if client == nil {
		slog.Error("no identity client on request", "path", r.URL.Path)
		c.renderGoogleError(w, r, state, "An unexpected error occurred. Please try again.")
		return
	}

	if _, err = client.SignInWithProvider(r.Context(), federated); err != nil {
		slog.Info("google sign in failed", "email", federated.Email, "code", identity.CodeOf(err), "error", err)
		c.renderGoogleError(w, r, state, identity.UserMessage(state.Action(), err))
		return
	}

	if state.Mode == internalmodels.OAuthModeSignup {
		c.sendWelcome(federated.DisplayName, federated.Email)
	}

	http.Redirect(w, r, "/home", http.StatusFound)
}

/*
GET /logout
*/
func (c AccountsController) LogoutAction(w http.ResponseWriter, r *http.Request) {
	session := viewmodels.GetAuthSessionFromContext(r)

	if client := viewmodels.GetIdentityClientFromContext(r); client != nil {
		if err := client.SignOut(r.Context()); err != nil {
			slog.Error("error signing out", "userID", session.UserID, "error", err)
		}
	}

	if session.UserID != 0 && c.signedOutListener != nil {
		c.signedOutListener.Delete(session.UserID)
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (c AccountsController) sendWelcome(name, email string) {
	if c.welcomeMailer == nil {
		return
	}

	go func() {
		if err := c.welcomeMailer.SendWelcome(name, email); err != nil {
			slog.Error("error sending welcome email", "email", email, "error", err)
		}
	}()
}

func (c AccountsController) renderGoogleError(w http.ResponseWriter, r *http.Request, state *internalmodels.OAuthState, message string) {
	base := viewmodels.BaseViewModel{
		IsHtmx:  httphelpers.IsHtmx(r),
		IsError: true,
		Message: message,
	}

	if state.Page() == "pages/signup" {
		c.renderer.Render("pages/signup", viewmodels.Signup{BaseViewModel: base, GoogleEnabled: c.googleProvider.Enabled()}, w)
		return
	}

	c.renderer.Render("pages/login", viewmodels.Login{BaseViewModel: base, GoogleEnabled: c.googleProvider.Enabled()}, w)
}
