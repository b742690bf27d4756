package viewmodels

import (
	"net/http"

	"github.com/adampresley/adamgokit/rendering"
	"github.com/adampresley/imagecaptioning/pkg/identity"
	"github.com/adampresley/imagecaptioning/pkg/models"
)

const (
	AuthSessionContextKey    = "authSession"
	IdentityClientContextKey = "identityClient"
)

type BaseViewModel struct {
	Message            string
	IsError            bool
	IsWarning          bool
	IsHtmx             bool
	JavascriptIncludes []rendering.JavascriptInclude
}

func GetAuthSessionFromContext(r *http.Request) *models.AuthSession {
	if result, ok := r.Context().Value(AuthSessionContextKey).(*models.AuthSession); ok && result != nil {
		return result
	}

	return &models.AuthSession{}
}

func GetIdentityClientFromContext(r *http.Request) *identity.Client {
	if result, ok := r.Context().Value(IdentityClientContextKey).(*identity.Client); ok {
		return result
	}

	return nil
}
