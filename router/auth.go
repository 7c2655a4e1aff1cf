package router

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/relaywamp/wampcore/wamp"
)

// authenticateTimeout bounds how long the router waits for an
// AUTHENTICATE reply to a CHALLENGE during WAMP-Ticket/WAMP-CRA
// handshakes.
const authenticateTimeout = 5 * time.Second

// AuthResult carries the outcome of a successful authentication:
// the identity details merged into the session and, eventually, the
// WELCOME message's own details.
type AuthResult struct {
	AuthID       string
	AuthRole     string
	AuthMethod   string
	AuthProvider string
}

// Authenticator negotiates one WAMP authentication method.  Method
// returns the authmethods value this Authenticator answers for (e.g.
// "anonymous", "ticket", "wampcra").  Authenticate receives the HELLO
// details and is free to do its own request/response round trip over
// peer before returning.
//
// This is strictly additive beyond spec.md's baseline boolean per-realm
// gate: a RealmConfig with no Authenticators configured behaves exactly
// like that gate (anything transport.realm_allowed lets through is
// welcomed).
type Authenticator interface {
	Method() string
	Authenticate(peer wamp.Peer, details wamp.Dict) (*AuthResult, error)
}

// AnonymousAuth accepts every client, under a single fixed authrole.
type AnonymousAuth struct {
	AuthRole string
}

func (a AnonymousAuth) Method() string { return "anonymous" }

func (a AnonymousAuth) Authenticate(peer wamp.Peer, details wamp.Dict) (*AuthResult, error) {
	role := a.AuthRole
	if role == "" {
		role = "anonymous"
	}
	return &AuthResult{AuthRole: role, AuthMethod: "anonymous", AuthProvider: "static"}, nil
}

// TicketAuth implements WAMP-Ticket: the router challenges for a shared
// secret (the "ticket") and compares it in constant time.
type TicketAuth struct {
	// Tickets maps authid -> expected ticket string.
	Tickets map[string]string
}

func (a TicketAuth) Method() string { return "ticket" }

func (a TicketAuth) Authenticate(peer wamp.Peer, details wamp.Dict) (*AuthResult, error) {
	authID, _ := details["authid"].(string)
	want, ok := a.Tickets[authID]
	if !ok {
		return nil, errors.New("wamp-ticket: unknown authid")
	}

	if err := peer.Send(&wamp.Challenge{AuthMethod: "ticket", Extra: wamp.Dict{}}); err != nil {
		return nil, err
	}
	msg, err := wamp.RecvTimeout(peer, authenticateTimeout)
	if err != nil {
		return nil, err
	}
	auth, ok := msg.(*wamp.Authenticate)
	if !ok {
		return nil, errors.New("wamp-ticket: expected AUTHENTICATE")
	}

	if subtle.ConstantTimeCompare([]byte(auth.Signature), []byte(want)) != 1 {
		return nil, errors.New("wamp-ticket: invalid ticket")
	}
	return &AuthResult{AuthID: authID, AuthRole: "user", AuthMethod: "ticket", AuthProvider: "static"}, nil
}

// CRAAuth implements WAMP-CRA (challenge-response authentication): the
// router sends a random challenge string, the client returns
// HMAC-SHA256(challenge, derived_key), where derived_key is a PBKDF2
// derivation of the shared secret.
type CRAAuth struct {
	// Secrets maps authid -> shared secret.
	Secrets map[string]string
	// Iterations is the PBKDF2 iteration count (0 defaults to 1000, the
	// value the WAMP-CRA spec recommends).
	Iterations int
	// KeyLen is the derived key length in bytes (0 defaults to 32).
	KeyLen int
}

func (a CRAAuth) Method() string { return "wampcra" }

func (a CRAAuth) Authenticate(peer wamp.Peer, details wamp.Dict) (*AuthResult, error) {
	authID, _ := details["authid"].(string)
	secret, ok := a.Secrets[authID]
	if !ok {
		return nil, errors.New("wamp-cra: unknown authid")
	}

	iterations := a.Iterations
	if iterations == 0 {
		iterations = 1000
	}
	keyLen := a.KeyLen
	if keyLen == 0 {
		keyLen = 32
	}

	challenge := make([]byte, 32)
	if _, err := rand.Read(challenge); err != nil {
		return nil, err
	}
	challengeStr := base64.StdEncoding.EncodeToString(challenge)

	if err := peer.Send(&wamp.Challenge{
		AuthMethod: "wampcra",
		Extra: wamp.Dict{
			"challenge": challengeStr,
		},
	}); err != nil {
		return nil, err
	}

	msg, err := wamp.RecvTimeout(peer, authenticateTimeout)
	if err != nil {
		return nil, err
	}
	auth, ok := msg.(*wamp.Authenticate)
	if !ok {
		return nil, errors.New("wamp-cra: expected AUTHENTICATE")
	}

	derived := pbkdf2.Key([]byte(secret), []byte(authID), iterations, keyLen, sha256.New)
	expected := craSign(derived, challengeStr)
	if subtle.ConstantTimeCompare([]byte(auth.Signature), []byte(expected)) != 1 {
		return nil, errors.New("wamp-cra: signature mismatch")
	}
	return &AuthResult{AuthID: authID, AuthRole: "user", AuthMethod: "wampcra", AuthProvider: "static"}, nil
}

func craSign(key []byte, challenge string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(challenge))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
