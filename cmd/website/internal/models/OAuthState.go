package models

const (
	OAuthModeLogin  = "login"
	OAuthModeSignup = "signup"
)

// OAuthState is kept in a short lived cookie between the redirect to the provider and the callback.
type OAuthState struct {
	State string
	Mode  string
}

func (s *OAuthState) Action() string {
	if s != nil && s.Mode == OAuthModeSignup {
		return "Google signup"
	}

	return "Google login"
}

func (s *OAuthState) Page() string {
	if s != nil && s.Mode == OAuthModeSignup {
		return "pages/signup"
	}

	return "pages/login"
}
