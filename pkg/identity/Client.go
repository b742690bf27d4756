package identity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/adampresley/imagecaptioning/pkg/models"
)

/*
Backend is the hosted side of the identity gateway. It owns accounts
and issues auth sessions.
*/
type Backend interface {
	CreateAccount(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error)
	SignInWithFederated(ctx context.Context, federated FederatedIdentity) (*models.AuthSession, error)
	SignOut(ctx context.Context, token string) error
	Resolve(ctx context.Context, token string) (*models.AuthSession, error)
}

// Persistence keeps the current auth session between page loads.
type Persistence interface {
	Load() (*models.AuthSession, error)
	Save(session *models.AuthSession) error
	Clear() error
}

type FederatedIdentity struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
}

/*
Client is the identity surface one user agent sees: sign in, sign up,
sign out, and a subscription to session changes. A nil session in a
notification means signed out.
*/
type Client struct {
	backend     Backend
	persistence Persistence

	mu          sync.Mutex
	current     *models.AuthSession
	started     bool
	nextID      int
	subscribers map[int]func(session *models.AuthSession)
}

func NewClient(backend Backend, persistence Persistence) *Client {
	return &Client{
		backend:     backend,
		persistence: persistence,
		subscribers: map[int]func(session *models.AuthSession){},
	}
}

/*
OnSessionChange registers handler for every session change and returns
the function that removes it. Once the client has started, the handler
is called right away with the current session.
*/
func (c *Client) OnSessionChange(handler func(session *models.AuthSession)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = handler
	started := c.started
	current := c.current
	c.mu.Unlock()

	if started {
		handler(current)
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

/*
Start restores the persisted session, if any, and emits the first
notification. A persisted session the backend no longer honors is
cleared.
*/
func (c *Client) Start(ctx context.Context) {
	var (
		err       error
		persisted *models.AuthSession
		resolved  *models.AuthSession
	)

	if persisted, err = c.persistence.Load(); err != nil {
		slog.Debug("no persisted auth session", "error", err)
	}

	if persisted.IsAuthenticated() {
		if resolved, err = c.backend.Resolve(ctx, persisted.Token); err != nil {
			slog.Info("persisted auth session is no longer valid", "userID", persisted.UserID, "error", err)
			c.clearPersisted()
			resolved = nil
		}
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	c.setSession(resolved)
}

func (c *Client) CurrentSession() *models.AuthSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	session, err := c.backend.SignInWithPassword(ctx, email, password)

	if err != nil {
		return nil, err
	}

	return session, c.establish(session)
}

// SignInWithProvider signs in with an identity already verified by a federated provider.
func (c *Client) SignInWithProvider(ctx context.Context, federated FederatedIdentity) (*models.AuthSession, error) {
	session, err := c.backend.SignInWithFederated(ctx, federated)

	if err != nil {
		return nil, err
	}

	return session, c.establish(session)
}

// CreateAccount registers a new email/password account and signs it in.
func (c *Client) CreateAccount(ctx context.Context, email, password string) (*models.AuthSession, error) {
	session, err := c.backend.CreateAccount(ctx, email, password)

	if err != nil {
		return nil, err
	}

	return session, c.establish(session)
}

/*
SignOut always ends the local session, even when the backend could not
revoke the token. The backend error is still returned.
*/
func (c *Client) SignOut(ctx context.Context) error {
	var (
		err error
	)

	current := c.CurrentSession()

	if current.IsAuthenticated() {
		err = c.backend.SignOut(ctx, current.Token)
	}

	c.clearPersisted()
	c.setSession(nil)

	return err
}

func (c *Client) establish(session *models.AuthSession) error {
	if err := c.persistence.Save(session); err != nil {
		return WrapError(CodeInternal, "unable to persist session", err)
	}

	c.setSession(session)
	return nil
}

func (c *Client) clearPersisted() {
	if err := c.persistence.Clear(); err != nil {
		slog.Error("error clearing persisted auth session", "error", err)
	}
}

func (c *Client) setSession(session *models.AuthSession) {
	c.mu.Lock()
	c.current = session

	handlers := make([]func(session *models.AuthSession), 0, len(c.subscribers))

	for _, handler := range c.subscribers {
		handlers = append(handlers, handler)
	}

	c.mu.Unlock()

	for _, handler := range handlers {
		handler(session)
	}
}
