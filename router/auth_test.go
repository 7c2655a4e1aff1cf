package router

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/relaywamp/wampcore/wamp"
)

func TestAnonymousAuth(t *testing.T) {
	a := AnonymousAuth{}
	res, err := a.Authenticate(nil, wamp.Dict{})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if res.AuthRole != "anonymous" || res.AuthMethod != "anonymous" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestAnonymousAuthCustomRole(t *testing.T) {
	a := AnonymousAuth{AuthRole: "guest"}
	res, _ := a.Authenticate(nil, wamp.Dict{})
	if res.AuthRole != "guest" {
		t.Errorf("AuthRole = %v, want guest", res.AuthRole)
	}
}

func TestTicketAuthSuccess(t *testing.T) {
	a := TicketAuth{Tickets: map[string]string{"alice": "s3cret"}}
	serverPeer, clientPeer := wamp.LocalPipe()
	defer serverPeer.Close()
	defer clientPeer.Close()

	done := make(chan struct {
		res *AuthResult
		err error
	}, 1)
	go func() {
		res, err := a.Authenticate(serverPeer, wamp.Dict{"authid": "alice"})
		done <- struct {
			res *AuthResult
			err error
		}{res, err}
	}()

	msg, err := wamp.RecvTimeout(clientPeer, time.Second)
	if err != nil {
		t.Fatalf("expected CHALLENGE, got error: %v", err)
	}
	if _, ok := msg.(*wamp.Challenge); !ok {
		t.Fatalf("expected CHALLENGE, got %T", msg)
	}
	clientPeer.Send(&wamp.Authenticate{Signature: "s3cret"})

	out := <-done
	if out.err != nil {
		t.Fatalf("Authenticate: %v", out.err)
	}
	if out.res.AuthID != "alice" || out.res.AuthMethod != "ticket" {
		t.Errorf("unexpected result: %+v", out.res)
	}
}

func TestTicketAuthWrongSecret(t *testing.T) {
	a := TicketAuth{Tickets: map[string]string{"alice": "s3cret"}}
	serverPeer, clientPeer := wamp.LocalPipe()
	defer serverPeer.Close()
	defer clientPeer.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := a.Authenticate(serverPeer, wamp.Dict{"authid": "alice"})
		errCh <- err
	}()

	wamp.RecvTimeout(clientPeer, time.Second)
	clientPeer.Send(&wamp.Authenticate{Signature: "wrong"})

	if err := <-errCh; err == nil {
		t.Error("expected authentication failure for a wrong ticket")
	}
}

func TestTicketAuthUnknownAuthID(t *testing.T) {
	a := TicketAuth{Tickets: map[string]string{"alice": "s3cret"}}
	if _, err := a.Authenticate(nil, wamp.Dict{"authid": "mallory"}); err == nil {
		t.Error("expected error for an unknown authid")
	}
}

func TestCRAAuthSuccess(t *testing.T) {
	a := CRAAuth{Secrets: map[string]string{"alice": "s3cret"}}
	serverPeer, clientPeer := wamp.LocalPipe()
	defer serverPeer.Close()
	defer clientPeer.Close()

	done := make(chan struct {
		res *AuthResult
		err error
	}, 1)
	go func() {
		res, err := a.Authenticate(serverPeer, wamp.Dict{"authid": "alice"})
		done <- struct {
			res *AuthResult
			err error
		}{res, err}
	}()

	msg, err := wamp.RecvTimeout(clientPeer, time.Second)
	if err != nil {
		t.Fatalf("expected CHALLENGE: %v", err)
	}
	ch, ok := msg.(*wamp.Challenge)
	if !ok {
		t.Fatalf("expected CHALLENGE, got %T", msg)
	}
	challengeStr, _ := ch.Extra["challenge"].(string)

	derived := pbkdf2.Key([]byte("s3cret"), []byte("alice"), 1000, 32, sha256.New)
	mac := hmac.New(sha256.New, derived)
	mac.Write([]byte(challengeStr))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	clientPeer.Send(&wamp.Authenticate{Signature: sig})

	out := <-done
	if out.err != nil {
		t.Fatalf("Authenticate: %v", out.err)
	}
	if out.res.AuthMethod != "wampcra" || out.res.AuthID != "alice" {
		t.Errorf("unexpected result: %+v", out.res)
	}
}

func TestCRAAuthBadSignature(t *testing.T) {
	a := CRAAuth{Secrets: map[string]string{"alice": "s3cret"}}
	serverPeer, clientPeer := wamp.LocalPipe()
	defer serverPeer.Close()
	defer clientPeer.Close()

	errCh := make(chan error, 1)
	go func() {
		_, err := a.Authenticate(serverPeer, wamp.Dict{"authid": "alice"})
		errCh <- err
	}()

	wamp.RecvTimeout(clientPeer, time.Second)
	clientPeer.Send(&wamp.Authenticate{Signature: "bogus"})

	if err := <-errCh; err == nil {
		t.Error("expected signature mismatch error")
	}
}
