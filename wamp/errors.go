package wamp

// Error URI constants emitted by the router.  Callee-supplied error URIs
// on INVOCATION failures are forwarded verbatim and have no constant
// here.
const (
	ErrProtocolViolation    URI = "wamp.error.protocol_violation"
	ErrNoSuchRealm          URI = "wamp.error.no_such_realm"
	ErrNoSuchRole           URI = "wamp.error.no_such_role"
	ErrNoSuchSubscription   URI = "wamp.error.no_such_subscription"
	ErrNoSuchRegistration   URI = "wamp.error.no_such_registration"
	ErrNoSuchProcedure      URI = "wamp.error.no_such_procedure"
	ErrProcedureExists      URI = "wamp.error.procedure_already_exists"
	ErrCalleeLost           URI = "wamp.error.callee_lost"
	ErrAuthenticationFailed URI = "wamp.error.authentication_failed"
	ErrSystemShutdown       URI = "wamp.error.system_shutdown"

	CloseGoodbyeAndOut URI = "wamp.close.goodbye_and_out"
)
