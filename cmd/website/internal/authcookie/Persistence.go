package authcookie

import (
	"fmt"
	"net/http"

	"github.com/adampresley/adamgokit/sessions"
	"github.com/adampresley/imagecaptioning/pkg/models"
)

/*
Persistence stores the auth session in the browser's session cookie.
It is bound to a single request and response.
*/
type Persistence struct {
	sessionService sessions.Session[*models.AuthSession]
	w              http.ResponseWriter
	r              *http.Request
}

func New(sessionService sessions.Session[*models.AuthSession], w http.ResponseWriter, r *http.Request) *Persistence {
	return &Persistence{
		sessionService: sessionService,
		w:              w,
		r:              r,
	}
}

func (p *Persistence) Load() (*models.AuthSession, error) {
	session, err := p.sessionService.Get(p.r)

	if err != nil {
		return nil, fmt.Errorf("error reading auth session cookie: %w", err)
	}

	return session, nil
}

func (p *Persistence) Save(session *models.AuthSession) error {
	if err := p.sessionService.Set(p.r, session); err != nil {
		return fmt.Errorf("error setting auth session: %w", err)
	}

	if err := p.sessionService.Save(p.w, p.r); err != nil {
		return fmt.Errorf("error saving auth session cookie: %w", err)
	}

	return nil
}

func (p *Persistence) Clear() error {
	if err := p.sessionService.Destroy(p.w, p.r); err != nil {
		return fmt.Errorf("error destroying auth session: %w", err)
	}

	if err := p.sessionService.Save(p.w, p.r); err != nil {
		return fmt.Errorf("error saving auth session cookie: %w", err)
	}

	return nil
}
