package router

import (
	"fmt"

	"github.com/relaywamp/wampcore/wamp"
)

// sessionState tracks a connSession through the WAMP session handshake,
// mirroring wampyre's STATE_UNAUTHENTICATED / STATE_AUTHENTICATING /
// STATE_AUTHENTICATED / STATE_CLOSED sequence.  Each inbound message type
// is only accepted in one of these states; anything else aborts the
// session.
type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticating
	stateAuthenticated
	stateClosed
)

// connSession is the per-connection state machine that negotiates HELLO
// and then dispatches every subsequent message for the lifetime of one
// Peer.  It is the generalization of the teacher's single-shot Attach
// handshake plus wampyre's handle_command dispatch table, unified around
// typed wamp.Message values instead of an (opcode, args) pair.
type connSession struct {
	rtr  *router
	peer wamp.Peer

	state sessionState
	base  *wamp.Session
	realm *Realm
	agent string
}

func newConnSession(peer wamp.Peer, rtr *router) *connSession {
	return &connSession{rtr: rtr, peer: peer, state: stateUnauthenticated}
}

// serve waits for the opening HELLO, bounded by helloTimeout, then
// dispatches it and every message that follows until the peer
// disconnects or the session is aborted.
func (s *connSession) serve() {
	msg, err := wamp.RecvTimeout(s.peer, helloTimeout)
	if err != nil {
		log.Print("did not receive HELLO: ", err)
		s.peer.Close()
		return
	}
	if !s.handle(msg) {
		return
	}
	for msg := range s.peer.Recv() {
		if !s.handle(msg) {
			return
		}
	}
	s.close(nil)
}

// handle dispatches one inbound message, converting any handler panic
// into a protocol-violation ABORT exactly as wampyre's handle_command
// wraps each dispatch in a bare except.  It returns false once the
// session has been aborted or closed, telling serve to stop reading.
func (s *connSession) handle(msg wamp.Message) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Print("panic handling ", msg.MessageType(), ": ", r)
			s.abort(wamp.ErrProtocolViolation, "Failed to execute command")
			ok = false
		}
	}()

	if DebugEnabled {
		log.Printf("session %v received %s: %+v", s.base, msg.MessageType(), msg)
	}

	if de, isDecodeErr := msg.(*wamp.DecodeError); isDecodeErr {
		if de.UnknownOpcode {
			s.abort(wamp.ErrProtocolViolation, "Invalid opcode")
		} else {
			s.abort(wamp.ErrProtocolViolation, "Command syntax does not match any allowed syntaxes")
		}
		return false
	}

	if hello, isHello := msg.(*wamp.Hello); isHello {
		if s.state != stateUnauthenticated {
			s.abort(wamp.ErrProtocolViolation, "Tried to execute command in wrong state")
			return false
		}
		return s.handleHello(hello)
	}

	if s.state != stateAuthenticated {
		s.abort(wamp.ErrProtocolViolation, "Tried to execute command in wrong state")
		return false
	}

	switch m := msg.(type) {
	case *wamp.Abort:
		log.Print("client aborted session: ", m.Reason)
		s.close(nil)
		return false
	case *wamp.Goodbye:
		s.base.Send(&wamp.Goodbye{Details: wamp.Dict{}, Reason: wamp.CloseGoodbyeAndOut})
		s.close(m)
		return false
	case *wamp.Error:
		if m.RequestType == wamp.INVOCATION {
			s.realm.ErrorInvocation(s.base, m.Request, m.Details, m.Error, m.Arguments, m.ArgumentsKw)
		} else {
			log.Print("unhandled ERROR for request type ", m.RequestType)
		}
	case *wamp.Publish:
		pubID, acked := s.realm.Publish(m.Options, m.Topic, m.Arguments, m.ArgumentsKw)
		if acked {
			s.send(&wamp.Published{Request: m.Request, Publication: pubID})
		}
	case *wamp.Subscribe:
		subID := s.realm.Subscribe(s.base, m.Options, m.Topic)
		s.send(&wamp.Subscribed{Request: m.Request, Subscription: subID})
	case *wamp.Unsubscribe:
		if s.realm.Unsubscribe(s.base, m.Subscription) {
			s.send(&wamp.Unsubscribed{Request: m.Request})
		} else {
			s.send(&wamp.Error{RequestType: wamp.UNSUBSCRIBE, Request: m.Request, Details: wamp.Dict{}, Error: wamp.ErrNoSuchSubscription})
		}
	case *wamp.Call:
		if !s.realm.Call(s.base, m.Request, m.Procedure, m.Arguments, m.ArgumentsKw) {
			s.send(&wamp.Error{RequestType: wamp.CALL, Request: m.Request, Details: wamp.Dict{}, Error: wamp.ErrNoSuchProcedure})
		}
	case *wamp.Register:
		regID, registered := s.realm.Register(s.base, m.Options, m.Procedure)
		if registered {
			s.send(&wamp.Registered{Request: m.Request, Registration: regID})
		} else {
			s.send(&wamp.Error{RequestType: wamp.REGISTER, Request: m.Request, Details: wamp.Dict{}, Error: wamp.ErrProcedureExists})
		}
	case *wamp.Unregister:
		if s.realm.Unregister(s.base, m.Registration) {
			s.send(&wamp.Unregistered{Request: m.Request})
		} else {
			s.send(&wamp.Error{RequestType: wamp.UNREGISTER, Request: m.Request, Details: wamp.Dict{}, Error: wamp.ErrNoSuchRegistration})
		}
	case *wamp.Yield:
		s.realm.Yield(s.base, m.Request, m.Arguments, m.ArgumentsKw)
	default:
		log.Print("unhandled message type ", msg.MessageType())
	}
	return true
}

// handleHello runs the HELLO handshake: the transport-level realm gate,
// role validation, realm resolution (lazily creating one per
// getOrCreateRealm), authentication against the realm's configured
// Authenticators, and finally WELCOME.
func (s *connSession) handleHello(hello *wamp.Hello) bool {
	if allower, ok := s.peer.(RealmAllower); ok && !allower.RealmAllowed(hello.Realm) {
		s.abort(wamp.ErrNoSuchRealm, "You do not have access to this realm.")
		return false
	}

	if string(hello.Realm) == "" {
		s.abort(wamp.ErrNoSuchRealm, "no realm requested")
		return false
	}

	details := wamp.NormalizeDict(hello.Details)
	if details == nil {
		details = wamp.Dict{}
	}

	roleVals, err := wamp.DictValue(details, []string{"roles"})
	if err != nil {
		s.abort(wamp.ErrNoSuchRole, "no client roles specified")
		return false
	}
	roles, ok := wamp.AsDict(roleVals)
	if !ok {
		roles = wamp.NormalizeDict(roleVals)
	}
	if len(roles) == 0 {
		s.abort(wamp.ErrNoSuchRole, "no client roles specified")
		return false
	}
	for roleName := range roles {
		switch roleName {
		case "publisher", "subscriber", "caller", "callee":
		default:
			s.abort(wamp.ErrNoSuchRole, "invalid client role specified: "+roleName)
			return false
		}
	}

	if _, ok := details["authmethods"]; !ok {
		details["authmethods"] = wamp.List{"anonymous"}
	}
	s.agent, _ = details["agent"].(string)

	realm, cfg, err := s.rtr.getOrCreateRealm(hello.Realm)
	if err != nil {
		s.abort(wamp.ErrNoSuchRealm, "The realm does not exist.")
		return false
	}
	if !hello.Realm.ValidURI(cfgStrict(cfg), "") {
		s.abort(wamp.ErrNoSuchRealm, "invalid realm URI")
		return false
	}

	s.state = stateAuthenticating
	authResult, err := authenticate(cfg, s.peer, details)
	if err != nil {
		s.abort(wamp.ErrAuthenticationFailed, fmt.Sprintf("authentication error: %v", err))
		return false
	}

	sessionDetails := wamp.Dict{
		"realm":        hello.Realm,
		"roles":        roles,
		"authid":       authResult.AuthID,
		"authrole":     authResult.AuthRole,
		"authmethod":   authResult.AuthMethod,
		"authprovider": authResult.AuthProvider,
	}
	welcomeDetails := wamp.Dict{
		"roles": wamp.Dict{
			"broker": wamp.Dict{},
			"dealer": wamp.Dict{},
		},
		"authid":       authResult.AuthID,
		"authrole":     authResult.AuthRole,
		"authmethod":   authResult.AuthMethod,
		"authprovider": authResult.AuthProvider,
	}

	id := wamp.GlobalID()
	s.base = wamp.NewSession(s.peer, id, sessionDetails, details)
	s.realm = realm
	s.realm.SessionJoined(s.base)
	s.state = stateAuthenticated

	s.send(&wamp.Welcome{ID: id, Details: welcomeDetails})
	log.Print("Created session: ", id)
	return true
}

// cfgStrict reads a RealmConfig's StrictURI flag, defaulting to false
// for an anonymous, unregistered realm.
func cfgStrict(cfg *RealmConfig) bool {
	if cfg == nil {
		return false
	}
	return cfg.StrictURI
}

func (s *connSession) send(msg wamp.Message) {
	if err := s.peer.Send(msg); err != nil {
		log.Print("error sending ", msg.MessageType(), ": ", err)
	}
}

// abort sends an ABORT with reason and message, then closes the
// session. message is carried as Details.message, matching the
// teacher's and wampyre's convention of a human-readable hint alongside
// the machine-readable reason URI.
func (s *connSession) abort(reason wamp.URI, message string) {
	s.send(&wamp.Abort{Details: wamp.Dict{"message": message}, Reason: reason})
	s.close(nil)
}

// close tears the session down: it marks the state closed, releases the
// bound realm's bookkeeping if one was joined, records how the session
// ended (goodbye is nil for an ABORT or a dropped connection, and the
// client's own Goodbye when one was received), and closes the
// transport.
func (s *connSession) close(goodbye *wamp.Goodbye) {
	s.state = stateClosed
	if s.realm != nil && s.base != nil {
		s.realm.SessionLost(s.base)
	}
	if s.base != nil {
		if s.base.End(goodbye) {
			if g := s.base.Goodbye(); g != wamp.NoGoodbye {
				log.Print("session ", s.base, " closed with reason: ", g.Reason)
			} else {
				log.Print("session ", s.base, " closed without goodbye")
			}
		}
	}
	s.peer.Close()
}
