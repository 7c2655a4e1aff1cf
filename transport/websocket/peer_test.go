package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/relaywamp/wampcore/wamp"
)

func TestWebsocketPeerRoundTrip(t *testing.T) {
	serverDone := make(chan wamp.Peer, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := Accept(w, r)
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		serverDone <- p
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	client, err := Dial(url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var server wamp.Peer
	select {
	case server = <-serverDone:
		defer server.Close()
	case <-time.After(time.Second):
		t.Fatal("server never accepted the connection")
	}

	hello := &wamp.Hello{Realm: "com.example.realm", Details: wamp.Dict{"roles": wamp.Dict{"caller": wamp.Dict{}}}}
	if err := client.Send(hello); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msg, err := wamp.RecvTimeout(server, 2*time.Second)
	if err != nil {
		t.Fatalf("server RecvTimeout: %v", err)
	}
	got, ok := msg.(*wamp.Hello)
	if !ok || got.Realm != hello.Realm {
		t.Fatalf("got %#v, want realm %v", msg, hello.Realm)
	}
}
