package router

import (
	"testing"
	"time"

	"github.com/fortytw2/leaktest"

	"github.com/relaywamp/wampcore/wamp"
)

func newTestRealm(t *testing.T) *Realm {
	t.Helper()
	r := NewRealm("com.example.realm", func(wamp.URI) {})
	go r.run()
	t.Cleanup(r.Close)
	return r
}

func recvMessage(t *testing.T, p wamp.Peer) wamp.Message {
	t.Helper()
	msg, err := wamp.RecvTimeout(p, time.Second)
	if err != nil {
		t.Fatalf("RecvTimeout: %v", err)
	}
	return msg
}

func TestRealmNoGoroutineLeak(t *testing.T) {
	defer leaktest.Check(t)()
	r := NewRealm("com.example.realm", func(wamp.URI) {})
	go r.run()
	r.Close()
}

func TestRealmPublishSubscribe(t *testing.T) {
	r := newTestRealm(t)

	subPeer, subClientPeer := wamp.LocalPipe()
	subSession := wamp.NewSession(subPeer, wamp.GlobalID(), wamp.Dict{}, wamp.Dict{})
	r.SessionJoined(subSession)

	subID := r.Subscribe(subSession, wamp.Dict{}, "com.example.topic")
	if subID == 0 {
		t.Fatal("expected nonzero subscription id")
	}

	pubPeer, _ := wamp.LocalPipe()
	pubSession := wamp.NewSession(pubPeer, wamp.GlobalID(), wamp.Dict{}, wamp.Dict{})
	r.SessionJoined(pubSession)

	pubID, acked := r.Publish(wamp.Dict{"acknowledge": true}, "com.example.topic", wamp.List{1, 2}, nil)
	if !acked || pubID == 0 {
		t.Fatalf("expected acknowledged publish, got ok=%v id=%v", acked, pubID)
	}

	msg := recvMessage(t, subClientPeer)
	evt, ok := msg.(*wamp.Event)
	if !ok {
		t.Fatalf("expected EVENT, got %T", msg)
	}
	if evt.Subscription != subID || evt.Publication != pubID {
		t.Errorf("EVENT ids = (%v, %v), want (%v, %v)", evt.Subscription, evt.Publication, subID, pubID)
	}
	if len(evt.Arguments) != 2 {
		t.Errorf("expected 2 event arguments, got %d", len(evt.Arguments))
	}
}

func TestRealmPublishNoAckWhenNotRequested(t *testing.T) {
	r := newTestRealm(t)
	_, acked := r.Publish(wamp.Dict{}, "com.example.topic", nil, nil)
	if acked {
		t.Error("expected ok=false when acknowledge was not requested")
	}
}

func TestRealmUnsubscribe(t *testing.T) {
	r := newTestRealm(t)
	peer, _ := wamp.LocalPipe()
	sess := wamp.NewSession(peer, wamp.GlobalID(), wamp.Dict{}, wamp.Dict{})
	r.SessionJoined(sess)

	subID := r.Subscribe(sess, wamp.Dict{}, "com.example.topic")
	if !r.Unsubscribe(sess, subID) {
		t.Fatal("expected Unsubscribe to succeed")
	}
	if r.Unsubscribe(sess, subID) {
		t.Error("expected second Unsubscribe of the same id to fail")
	}
}

func TestRealmCallYield(t *testing.T) {
	r := newTestRealm(t)

	calleePeer, calleeClientPeer := wamp.LocalPipe()
	callee := wamp.NewSession(calleePeer, wamp.GlobalID(), wamp.Dict{}, wamp.Dict{})
	r.SessionJoined(callee)
	regID, ok := r.Register(callee, wamp.Dict{}, "com.example.proc")
	if !ok {
		t.Fatal("expected registration to succeed")
	}

	callerPeer, callerClientPeer := wamp.LocalPipe()
	caller := wamp.NewSession(callerPeer, wamp.GlobalID(), wamp.Dict{}, wamp.Dict{})
	r.SessionJoined(caller)

	requestID := caller.NextID()
	if !r.Call(caller, requestID, "com.example.proc", wamp.List{42}, nil) {
		t.Fatal("expected Call to find the registration")
	}

	msg := recvMessage(t, calleeClientPeer)
	inv, ok := msg.(*wamp.Invocation)
	if !ok {
		t.Fatalf("expected INVOCATION, got %T", msg)
	}
	if inv.Registration != regID {
		t.Errorf("invocation registration = %v, want %v", inv.Registration, regID)
	}

	r.Yield(callee, inv.Request, wamp.List{"result"}, nil)

	msg = recvMessage(t, callerClientPeer)
	res, ok := msg.(*wamp.Result)
	if !ok {
		t.Fatalf("expected RESULT, got %T", msg)
	}
	if res.Request != requestID {
		t.Errorf("result request = %v, want %v", res.Request, requestID)
	}
	if len(res.Arguments) != 1 || res.Arguments[0] != "result" {
		t.Errorf("unexpected result arguments: %#v", res.Arguments)
	}
}

func TestRealmCallNoSuchProcedure(t *testing.T) {
	r := newTestRealm(t)
	peer, _ := wamp.LocalPipe()
	caller := wamp.NewSession(peer, wamp.GlobalID(), wamp.Dict{}, wamp.Dict{})
	if r.Call(caller, caller.NextID(), "com.example.missing", nil, nil) {
		t.Error("expected Call to report no matching registration")
	}
}

func TestRealmErrorInvocation(t *testing.T) {
	r := newTestRealm(t)

	calleePeer, calleeClientPeer := wamp.LocalPipe()
	callee := wamp.NewSession(calleePeer, wamp.GlobalID(), wamp.Dict{}, wamp.Dict{})
	r.SessionJoined(callee)
	r.Register(callee, wamp.Dict{}, "com.example.proc")

	callerPeer, callerClientPeer := wamp.LocalPipe()
	caller := wamp.NewSession(callerPeer, wamp.GlobalID(), wamp.Dict{}, wamp.Dict{})
	r.SessionJoined(caller)

	requestID := caller.NextID()
	r.Call(caller, requestID, "com.example.proc", nil, nil)

	msg := recvMessage(t, calleeClientPeer)
	inv := msg.(*wamp.Invocation)

	r.ErrorInvocation(callee, inv.Request, wamp.Dict{}, "com.example.error.failed", nil, nil)

	msg = recvMessage(t, callerClientPeer)
	errMsg, ok := msg.(*wamp.Error)
	if !ok {
		t.Fatalf("expected ERROR, got %T", msg)
	}
	if errMsg.RequestType != wamp.CALL || errMsg.Request != requestID {
		t.Errorf("unexpected ERROR correlation: %+v", errMsg)
	}
	if errMsg.Error != "com.example.error.failed" {
		t.Errorf("error uri = %v", errMsg.Error)
	}
}

func TestRealmSessionLostSynthesizesCalleeLost(t *testing.T) {
	r := newTestRealm(t)

	calleePeer, _ := wamp.LocalPipe()
	callee := wamp.NewSession(calleePeer, wamp.GlobalID(), wamp.Dict{}, wamp.Dict{})
	r.SessionJoined(callee)
	r.Register(callee, wamp.Dict{}, "com.example.proc")

	callerPeer, callerClientPeer := wamp.LocalPipe()
	caller := wamp.NewSession(callerPeer, wamp.GlobalID(), wamp.Dict{}, wamp.Dict{})
	r.SessionJoined(caller)

	requestID := caller.NextID()
	r.Call(caller, requestID, "com.example.proc", nil, nil)

	// The callee disappears mid-call.
	r.SessionLost(callee)

	msg := recvMessage(t, callerClientPeer)
	errMsg, ok := msg.(*wamp.Error)
	if !ok {
		t.Fatalf("expected ERROR, got %T", msg)
	}
	if errMsg.Error != wamp.ErrCalleeLost || errMsg.Request != requestID {
		t.Errorf("unexpected synthesized error: %+v", errMsg)
	}
}

func TestRealmSessionLostDiscardsWhenEmpty(t *testing.T) {
	discarded := make(chan wamp.URI, 1)
	r := NewRealm("com.example.realm", func(name wamp.URI) { discarded <- name })
	go r.run()
	defer r.Close()

	peer, _ := wamp.LocalPipe()
	sess := wamp.NewSession(peer, wamp.GlobalID(), wamp.Dict{}, wamp.Dict{})
	r.SessionJoined(sess)
	r.SessionLost(sess)

	select {
	case name := <-discarded:
		if name != "com.example.realm" {
			t.Errorf("onEmpty called with %v", name)
		}
	case <-time.After(time.Second):
		t.Fatal("onEmpty was not called")
	}
}
