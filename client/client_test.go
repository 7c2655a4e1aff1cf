package client

import (
	"errors"
	"testing"
	"time"

	"github.com/relaywamp/wampcore/router"
	"github.com/relaywamp/wampcore/wamp"
)

func joinTestClient(t *testing.T, rtr router.Router, realm wamp.URI) *Client {
	t.Helper()
	serverPeer, clientPeer := wamp.LocalPipe()
	if err := rtr.Attach(serverPeer); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	c, err := JoinSession(clientPeer, realm, nil)
	if err != nil {
		t.Fatalf("JoinSession: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClientPublishSubscribe(t *testing.T) {
	rtr := router.NewRouter(nil)
	defer rtr.Close()

	sub := joinTestClient(t, rtr, "com.example.realm")
	pub := joinTestClient(t, rtr, "com.example.realm")

	received := make(chan wamp.List, 1)
	if err := sub.Subscribe("com.example.topic", func(args wamp.List, kwargs, details wamp.Dict) {
		received <- args
	}, nil); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	if err := pub.Publish("com.example.topic", wamp.Dict{"acknowledge": true}, wamp.List{"hi"}, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case args := <-received:
		if len(args) != 1 || args[0] != "hi" {
			t.Errorf("unexpected event args: %#v", args)
		}
	case <-time.After(time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestClientUnsubscribe(t *testing.T) {
	rtr := router.NewRouter(nil)
	defer rtr.Close()
	sub := joinTestClient(t, rtr, "com.example.realm")

	if err := sub.Subscribe("com.example.topic", func(wamp.List, wamp.Dict, wamp.Dict) {}, nil); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := sub.Unsubscribe("com.example.topic"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if err := sub.Unsubscribe("com.example.topic"); err == nil {
		t.Error("expected error unsubscribing a topic that is no longer subscribed")
	}
}

func TestClientCallRegister(t *testing.T) {
	rtr := router.NewRouter(nil)
	defer rtr.Close()

	callee := joinTestClient(t, rtr, "com.example.realm")
	caller := joinTestClient(t, rtr, "com.example.realm")

	err := callee.Register("com.example.add", func(args wamp.List, kwargs, details wamp.Dict) (wamp.List, wamp.Dict, error) {
		a, _ := args[0].(int)
		b, _ := args[1].(int)
		return wamp.List{a + b}, nil, nil
	}, nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	res, err := caller.Call("com.example.add", nil, wamp.List{2, 3}, nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(res.Arguments) != 1 || res.Arguments[0] != 5 {
		t.Errorf("unexpected call result: %#v", res.Arguments)
	}
}

func TestClientCallPropagatesHandlerError(t *testing.T) {
	rtr := router.NewRouter(nil)
	defer rtr.Close()

	callee := joinTestClient(t, rtr, "com.example.realm")
	caller := joinTestClient(t, rtr, "com.example.realm")

	callee.Register("com.example.fail", func(wamp.List, wamp.Dict, wamp.Dict) (wamp.List, wamp.Dict, error) {
		return nil, nil, errors.New("boom")
	}, nil)

	if _, err := caller.Call("com.example.fail", nil, nil, nil); err == nil {
		t.Error("expected Call to report the handler's error")
	}
}

func TestClientCallNoSuchProcedure(t *testing.T) {
	rtr := router.NewRouter(nil)
	defer rtr.Close()
	caller := joinTestClient(t, rtr, "com.example.realm")

	if _, err := caller.Call("com.example.missing", nil, nil, nil); err == nil {
		t.Error("expected error calling an unregistered procedure")
	}
}

func TestClientDoneFiresOnClose(t *testing.T) {
	rtr := router.NewRouter(nil)
	defer rtr.Close()
	c := joinTestClient(t, rtr, "com.example.realm")

	c.Close()
	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Done to close after Close")
	}
}
