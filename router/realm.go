package router

import (
	"github.com/relaywamp/wampcore/wamp"
)

// Realm holds everything specific to one logical namespace: its
// subscription and registration indices, and the call/invocation
// correlation tables.  All mutation runs on the realm's own goroutine,
// serialized through actionChan, so that concurrent sessions publishing,
// calling, or tearing down never race on the realm's maps — the
// "single-threaded cooperative data plane per realm" model.
type Realm struct {
	name wamp.URI

	subscriptions *PatternIndex
	registrations *PatternIndex

	sessions map[*wamp.Session]struct{}

	// calls: caller session -> set of its outstanding call ids.
	calls map[*wamp.Session]map[wamp.ID]struct{}
	// callIDs: call id -> caller session.
	callIDs map[wamp.ID]*wamp.Session
	// invocationToCall: invocation id -> call id.
	invocationToCall map[wamp.ID]wamp.ID
	// invocations: callee session -> set of its outstanding invocation ids.
	invocations map[*wamp.Session]map[wamp.ID]struct{}

	onEmpty func(wamp.URI)

	actionChan chan func()
	closed     chan struct{}
}

// NewRealm creates a realm with no joined sessions.  onEmpty is invoked,
// with the realm's name, the moment its session set becomes empty
// (normally wired to a RealmManager's DiscardRealm).
func NewRealm(name wamp.URI, onEmpty func(wamp.URI)) *Realm {
	return &Realm{
		name:             name,
		subscriptions:    NewPatternIndex(true),
		registrations:    NewPatternIndex(false),
		sessions:         make(map[*wamp.Session]struct{}),
		calls:            make(map[*wamp.Session]map[wamp.ID]struct{}),
		callIDs:          make(map[wamp.ID]*wamp.Session),
		invocationToCall: make(map[wamp.ID]wamp.ID),
		invocations:      make(map[*wamp.Session]map[wamp.ID]struct{}),
		onEmpty:          onEmpty,
		actionChan:       make(chan func()),
		closed:           make(chan struct{}),
	}
}

// Name returns the realm's URI.
func (r *Realm) Name() wamp.URI { return r.name }

// run processes realm actions one at a time until Close is called.  The
// caller of NewRealm is responsible for starting this on its own
// goroutine.
func (r *Realm) run() {
	for {
		select {
		case action := <-r.actionChan:
			action()
		case <-r.closed:
			return
		}
	}
}

// Close stops the realm's goroutine.  Pending actions already sent on
// actionChan are not guaranteed to run.
func (r *Realm) Close() {
	select {
	case <-r.closed:
	default:
		close(r.closed)
	}
}

// do runs fn on the realm's own goroutine and waits for it to finish,
// giving callers from arbitrary session goroutines a synchronous,
// serialized view of realm state.
func (r *Realm) do(fn func()) {
	done := make(chan struct{})
	select {
	case r.actionChan <- func() { fn(); close(done) }:
		<-done
	case <-r.closed:
	}
}

// --- Broker ---

// Subscribe registers session's interest in topic under the match policy
// named by options["match"] (default exact).
func (r *Realm) Subscribe(session *wamp.Session, options wamp.Dict, topic wamp.URI) wamp.ID {
	policy := ParseMatchPolicy(options["match"])
	var id wamp.ID
	r.do(func() {
		id, _ = r.subscriptions.Register(session, topic, policy)
	})
	return id
}

// Unsubscribe cancels subscriptionID, which must have been created by
// session.
func (r *Realm) Unsubscribe(session *wamp.Session, subscriptionID wamp.ID) bool {
	var ok bool
	r.do(func() {
		ok = r.subscriptions.Unregister(session, subscriptionID)
	})
	return ok
}

// Publish fans an EVENT out to every subscriber whose pattern covers
// topic.  It returns the publication id together with ok=true when
// options["acknowledge"] is truthy; otherwise ok is false and the
// publisher gets no reply.
func (r *Realm) Publish(options wamp.Dict, topic wamp.URI, args wamp.List, kwargs wamp.Dict) (pubID wamp.ID, ok bool) {
	r.do(func() {
		pubID = wamp.GlobalID()
		matches := r.subscriptions.Match(topic)
		for _, m := range matches {
			evt := &wamp.Event{
				Subscription: m.ID,
				Publication:  pubID,
				Details:      wamp.Dict{"topic": topic},
			}
			if args != nil {
				evt.Arguments = args
				if kwargs != nil {
					evt.ArgumentsKw = kwargs
				}
			}
			if err := m.Session.Send(evt); err != nil {
				log.Print("error sending EVENT to session ", m.Session, ": ", err)
			}
		}
		if ack, _ := options["acknowledge"].(bool); ack {
			ok = true
		}
	})
	return pubID, ok
}

// --- Dealer ---

// Register offers session to serve calls matching procedure, under the
// match policy named by options["match"].  It returns (0, false) if the
// pattern is already covered by another registration.
func (r *Realm) Register(session *wamp.Session, options wamp.Dict, procedure wamp.URI) (wamp.ID, bool) {
	policy := ParseMatchPolicy(options["match"])
	var id wamp.ID
	var ok bool
	r.do(func() {
		id, ok = r.registrations.Register(session, procedure, policy)
	})
	return id, ok
}

// Unregister cancels registrationID, which must have been created by
// session.
func (r *Realm) Unregister(session *wamp.Session, registrationID wamp.ID) bool {
	var ok bool
	r.do(func() {
		ok = r.registrations.Unregister(session, registrationID)
	})
	return ok
}

// Call routes a CALL to the single registration covering procedure,
// generating an invocation id from the callee's own session-local
// counter and recording the four-way call/invocation correlation.  It
// reports false if no registration covers procedure.
func (r *Realm) Call(caller *wamp.Session, requestID wamp.ID, procedure wamp.URI, args wamp.List, kwargs wamp.Dict) bool {
	var found bool
	r.do(func() {
		calleeSession, registrationID, ok := r.registrations.MatchOne(procedure)
		if !ok {
			return
		}
		found = true

		invocationID := calleeSession.NextID()
		inv := &wamp.Invocation{
			Request:      invocationID,
			Registration: registrationID,
			Details:      wamp.Dict{"procedure": procedure},
		}
		if args != nil {
			inv.Arguments = args
			if kwargs != nil {
				inv.ArgumentsKw = kwargs
			}
		}
		if err := calleeSession.Send(inv); err != nil {
			log.Print("error sending INVOCATION to session ", calleeSession, ": ", err)
		}

		if r.calls[caller] == nil {
			r.calls[caller] = make(map[wamp.ID]struct{})
		}
		r.calls[caller][requestID] = struct{}{}
		r.callIDs[requestID] = caller

		r.invocationToCall[invocationID] = requestID
		if r.invocations[calleeSession] == nil {
			r.invocations[calleeSession] = make(map[wamp.ID]struct{})
		}
		r.invocations[calleeSession][invocationID] = struct{}{}
	})
	return found
}

// popCall atomically removes all four correlations for invocationID and
// returns the caller session and call id they resolved to.  Must run on
// the realm's own goroutine.
func (r *Realm) popCall(invocationID wamp.ID) (*wamp.Session, wamp.ID, bool) {
	callID, ok := r.invocationToCall[invocationID]
	if !ok {
		return nil, 0, false
	}
	delete(r.invocationToCall, invocationID)

	callerSession, ok := r.callIDs[callID]
	if ok {
		delete(r.callIDs, callID)
		if set := r.calls[callerSession]; set != nil {
			delete(set, callID)
			if len(set) == 0 {
				delete(r.calls, callerSession)
			}
		}
	}

	for callee, set := range r.invocations {
		if _, ok := set[invocationID]; ok {
			delete(set, invocationID)
			if len(set) == 0 {
				delete(r.invocations, callee)
			}
			break
		}
	}

	return callerSession, callID, ok
}

// Yield delivers a RESULT to the caller of the call that invocationID
// answers.  It is a no-op if the invocation is not (or no longer) known.
func (r *Realm) Yield(callee *wamp.Session, invocationID wamp.ID, args wamp.List, kwargs wamp.Dict) {
	r.do(func() {
		callerSession, callID, ok := r.popCall(invocationID)
		if !ok || callerSession == nil {
			return
		}
		res := &wamp.Result{Request: callID, Details: wamp.Dict{}}
		if args != nil {
			res.Arguments = args
			if kwargs != nil {
				res.ArgumentsKw = kwargs
			}
		}
		if err := callerSession.Send(res); err != nil {
			log.Print("error sending RESULT to session ", callerSession, ": ", err)
		}
	})
}

// ErrorInvocation delivers an ERROR(CALL, ...) to the caller of the call
// that invocationID answers.  It is a no-op if the invocation is not (or
// no longer) known.
func (r *Realm) ErrorInvocation(callee *wamp.Session, invocationID wamp.ID, details wamp.Dict, errURI wamp.URI, args wamp.List, kwargs wamp.Dict) {
	r.do(func() {
		r.errorInvocationLocked(invocationID, errURI, args, kwargs)
	})
}

// errorInvocationLocked performs the ERROR(CALL,...) delivery; it must
// run on the realm's own goroutine.
func (r *Realm) errorInvocationLocked(invocationID wamp.ID, errURI wamp.URI, args wamp.List, kwargs wamp.Dict) {
	callerSession, callID, ok := r.popCall(invocationID)
	if !ok || callerSession == nil {
		return
	}
	errMsg := &wamp.Error{
		RequestType: wamp.CALL,
		Request:     callID,
		Details:     wamp.Dict{},
		Error:       errURI,
	}
	if args != nil {
		errMsg.Arguments = args
		if kwargs != nil {
			errMsg.ArgumentsKw = kwargs
		}
	}
	if err := callerSession.Send(errMsg); err != nil {
		log.Print("error sending ERROR(CALL) to session ", callerSession, ": ", err)
	}
}

// --- Lifecycle ---

// SessionJoined records that session is now part of the realm.
func (r *Realm) SessionJoined(session *wamp.Session) {
	r.do(func() {
		r.sessions[session] = struct{}{}
	})
}

// SessionLost unwinds every subscription, registration, and in-flight
// call or invocation session held, synthesizing wamp.error.callee_lost
// for any invocation session was still processing as callee, then
// discards the realm if it is now empty.
func (r *Realm) SessionLost(session *wamp.Session) {
	r.do(func() {
		delete(r.sessions, session)

		r.subscriptions.UnregisterSession(session)
		r.registrations.UnregisterSession(session)

		// Snapshot the invocation id set before iterating: error
		// delivery mutates r.invocations as a side effect of popCall,
		// and iterating a map while deleting from it during the same
		// range is unsafe.
		if set, ok := r.invocations[session]; ok {
			ids := make([]wamp.ID, 0, len(set))
			for id := range set {
				ids = append(ids, id)
			}
			delete(r.invocations, session)
			for _, invocationID := range ids {
				r.errorInvocationLocked(invocationID, wamp.ErrCalleeLost, nil, nil)
			}
		}

		if calls, ok := r.calls[session]; ok {
			for callID := range calls {
				delete(r.callIDs, callID)
			}
			delete(r.calls, session)
		}

		if len(r.sessions) == 0 && r.onEmpty != nil {
			r.onEmpty(r.name)
		}
	})
}
