package router

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/relaywamp/wampcore/wamp"
)

const helloTimeout = 5 * time.Second

// RealmAllower is an optional capability a Peer may implement: the
// transport-level gate on HELLO described in the transport contract
// (§4.6).  A Peer that does not implement it is treated as allowing
// every realm, i.e. the baseline boolean gate defaults to "open".
type RealmAllower interface {
	RealmAllowed(realm wamp.URI) bool
}

// Router handles new Peers and routes their requests to the realm named
// in their HELLO.
type Router interface {
	// AddRealm registers a realm configuration and eagerly creates the
	// realm. Realms need to be added in advance only when
	// RequireRegisteredRealms is set and no AutoRealmTemplate is given;
	// otherwise HELLO creates them on demand.
	AddRealm(*RealmConfig) (*Realm, error)

	// Attach connects a client to the router: it spawns the session
	// state machine that negotiates HELLO and then serves the
	// connection for its lifetime. Attach itself returns as soon as the
	// session goroutine has been started.
	Attach(wamp.Peer) error

	// Close stops the router and waits for every realm to finish
	// processing in-flight actions.
	Close()
}

type router struct {
	manager *RealmManager

	actionChan chan func()
	waitRealms sync.WaitGroup

	configs           map[wamp.URI]*RealmConfig
	autoRealmTemplate *RealmConfig
	requireRegistered bool
	closed            bool
}

// NewRouter creates a Router from the given configuration.  A nil config
// is equivalent to &RouterConfig{}: no realms are pre-registered, and
// HELLO to an unregistered realm lazily creates it.
func NewRouter(cfg *RouterConfig) Router {
	r := &router{
		actionChan: make(chan func()),
		configs:    make(map[wamp.URI]*RealmConfig),
	}
	r.manager = NewRealmManager(r.newRealm)
	if cfg != nil {
		r.autoRealmTemplate = cfg.AutoRealmTemplate
		r.requireRegistered = cfg.RequireRegisteredRealms
		for _, rc := range cfg.Realms {
			r.configs[rc.URI] = rc
		}
	}
	go r.run()
	return r
}

// run is the single goroutine that serializes access to the router's own
// bookkeeping (its realm config set and closed flag). Each realm has its
// own independent serialization; this loop never touches realm state
// directly.
func (r *router) run() {
	for action := range r.actionChan {
		action()
	}
}

// newRealm is wired into the RealmManager as its realm constructor: it
// builds a Realm and starts its processing goroutine, tracked so Close
// can wait for every realm to drain.
func (r *router) newRealm(name wamp.URI) *Realm {
	var realm *Realm
	realm = NewRealm(name, func(n wamp.URI) {
		r.manager.DiscardRealm(n)
		realm.Close()
	})
	r.waitRealms.Add(1)
	go func() {
		realm.run()
		r.waitRealms.Done()
	}()
	return realm
}

// AddRealm creates a new Realm and adds that to the router.
func (r *router) AddRealm(config *RealmConfig) (*Realm, error) {
	if !config.URI.ValidURI(config.StrictURI, "") {
		return nil, fmt.Errorf("invalid realm URI %v (strict %v)", config.URI, config.StrictURI)
	}

	sync := make(chan error)
	r.actionChan <- func() {
		if r.closed {
			sync <- errors.New("router closed")
			return
		}
		if _, ok := r.configs[config.URI]; ok {
			sync <- errors.New("realm already exists: " + string(config.URI))
			return
		}
		r.configs[config.URI] = config
		sync <- nil
	}
	if err := <-sync; err != nil {
		return nil, fmt.Errorf("error adding realm: %w", err)
	}

	realm := r.manager.GetRealm(config.URI)
	log.Print("Added realm: ", config.URI)
	return realm, nil
}

// Attach connects a client to the router and to the realm it requests.
func (r *router) Attach(peer wamp.Peer) error {
	sync := make(chan error)
	r.actionChan <- func() {
		if r.closed {
			sync <- errors.New("router is closing, not accepting new clients")
			return
		}
		sync <- nil
	}
	if err := <-sync; err != nil {
		abortMsg := &wamp.Abort{Reason: wamp.ErrSystemShutdown}
		peer.Send(abortMsg)
		peer.Close()
		return err
	}

	sess := newConnSession(peer, r)
	go sess.serve()
	return nil
}

// Close stops the router and waits for every realm to finish processing.
func (r *router) Close() {
	sync := make(chan struct{})
	r.actionChan <- func() {
		r.closed = true
		sync <- struct{}{}
	}
	<-sync

	for _, realm := range r.manager.Realms() {
		realm.Close()
	}
	r.waitRealms.Wait()
}

// getOrCreateRealm resolves name to a live Realm, auto-registering it
// from autoRealmTemplate the first time it is seen if one was
// configured. By default it always lazily creates the Realm itself, per
// the realm manager's create-on-first-reference semantics and spec.md's
// default gate (no registration requirement); RequireRegisteredRealms
// opts into the stricter, teacher-style behavior of refusing HELLO to
// realms nobody registered or templated.
func (r *router) getOrCreateRealm(name wamp.URI) (*Realm, *RealmConfig, error) {
	sync := make(chan error)
	var cfg *RealmConfig
	var refuse bool
	r.actionChan <- func() {
		var ok bool
		cfg, ok = r.configs[name]
		if !ok && r.autoRealmTemplate != nil {
			cfgCopy := *r.autoRealmTemplate
			cfgCopy.URI = name
			cfg = &cfgCopy
			r.configs[name] = cfg
			log.Print("Auto-added realm: ", name)
		}
		if !ok && cfg == nil && r.requireRegistered {
			refuse = true
		}
		sync <- nil
	}
	<-sync
	if refuse {
		return nil, nil, fmt.Errorf("no realm %q exists on this router", string(name))
	}
	return r.manager.GetRealm(name), cfg, nil
}

// authenticate runs the HELLO handshake's authentication step against
// cfg's configured Authenticators (trying each of the client's offered
// authmethods, in order, against cfg.Authenticators). A nil or
// authenticator-less cfg is the baseline anonymous gate: anything that
// passed the transport's RealmAllowed check is welcomed.
func authenticate(cfg *RealmConfig, peer wamp.Peer, details wamp.Dict) (*AuthResult, error) {
	if cfg == nil || len(cfg.Authenticators) == 0 {
		return &AuthResult{AuthRole: "anonymous", AuthMethod: "anonymous", AuthProvider: "static"}, nil
	}

	methods, ok := wamp.ListValue(details, "authmethods")
	if !ok || len(methods) == 0 {
		methods = wamp.List{"anonymous"}
	}
	for _, mv := range methods {
		name, _ := mv.(string)
		for _, a := range cfg.Authenticators {
			if a.Method() == name {
				return a.Authenticate(peer, details)
			}
		}
	}
	return nil, errors.New("no authmethod offered by client is acceptable to this realm")
}
