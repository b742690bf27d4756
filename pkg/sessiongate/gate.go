package sessiongate

import (
	"strings"
	"sync"

	"github.com/adampresley/imagecaptioning/pkg/models"
)

const (
	EntryPath  = "/"
	LoginPath  = "/login"
	SignupPath = "/signup"
	HomePath   = "/home"
)

// Notifier is anything that reports auth session changes.
type Notifier interface {
	OnSessionChange(handler func(session *models.AuthSession)) func()
}

type Decision int

const (
	// DecisionWait means the first session notification hasn't arrived. Render neither view.
	DecisionWait Decision = iota
	DecisionRender
	DecisionRedirect
)

type Outcome struct {
	Decision Decision
	Location string
}

/*
Gate mirrors the identity gateway's session into a single
authenticated / not signal. Every notification replaces the held
session and the first one ends initialization.
*/
type Gate struct {
	mu           sync.RWMutex
	session      *models.AuthSession
	initializing bool
	unsubscribe  func()
}

func New(notifier Notifier) *Gate {
	g := &Gate{
		initializing: true,
	}

	g.unsubscribe = notifier.OnSessionChange(g.handle)
	return g
}

func (g *Gate) handle(session *models.AuthSession) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.session = session
	g.initializing = false
}

func (g *Gate) Initializing() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.initializing
}

func (g *Gate) Authenticated() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.session.IsAuthenticated()
}

func (g *Gate) Session() *models.AuthSession {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.session
}

/*
Decide picks what to do with a request for path. Signed in users are
sent away from the entry, login and signup routes. Everyone else is
sent away from home. Paths the gate doesn't know about render.
*/
func (g *Gate) Decide(path string) Outcome {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.initializing {
		return Outcome{Decision: DecisionWait}
	}

	authenticated := g.session.IsAuthenticated()

	switch {
	case isUnauthenticatedRoute(path):
		if authenticated {
			return Outcome{Decision: DecisionRedirect, Location: HomePath}
		}

	case isAuthenticatedRoute(path):
		if !authenticated {
			return Outcome{Decision: DecisionRedirect, Location: EntryPath}
		}
	}

	return Outcome{Decision: DecisionRender}
}

// Close unsubscribes from the notifier. It is safe to call more than once.
func (g *Gate) Close() {
	g.mu.Lock()
	unsubscribe := g.unsubscribe
	g.unsubscribe = nil
	g.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func isUnauthenticatedRoute(path string) bool {
	return path == EntryPath || path == LoginPath || path == SignupPath
}

func isAuthenticatedRoute(path string) bool {
	return path == HomePath || strings.HasPrefix(path, HomePath+"/")
}
