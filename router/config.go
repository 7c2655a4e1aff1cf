package router

import "github.com/relaywamp/wampcore/wamp"

// RealmConfig describes one realm a Router is willing to host: its URI,
// whether strict URI validation applies, and the set of authentication
// methods it accepts.  A RealmConfig with no Authenticators behaves
// exactly like spec.md's baseline: any session whose transport passes
// the boolean realm_allowed gate is welcomed anonymously.
type RealmConfig struct {
	URI       wamp.URI
	StrictURI bool

	// Authenticators lists the authentication methods this realm
	// accepts, tried in order against the client's HELLO
	// details.authmethods.  Nil or empty means anonymous-only.
	Authenticators []Authenticator
}

// RouterConfig configures a Router's realm set at construction time.
type RouterConfig struct {
	// Realms are registered immediately.
	Realms []*RealmConfig
	// AutoRealmTemplate, if non-nil, is cloned (with URI overwritten;
	// StrictURI is kept from the template) to build a RealmConfig on demand the first time a
	// client HELLOs to a realm name the router has not seen, so that
	// the auto-created realm still gets a configured authenticator set.
	AutoRealmTemplate *RealmConfig

	// RequireRegisteredRealms, when true, restores the stricter,
	// non-default gate: HELLO to a realm with no RealmConfig (and no
	// AutoRealmTemplate) is rejected with wamp.error.no_such_realm
	// instead of lazily creating an open, anonymous-only realm.  The
	// realm manager's default behavior (and spec.md's) is to always
	// lazily create; this is reserved for deployments that want to
	// enumerate their realms up front.
	RequireRegisteredRealms bool
}
