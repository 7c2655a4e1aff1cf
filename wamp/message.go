package wamp

// Message is the common interface satisfied by every WAMP message type.
// Per the typed-union design in the router's design notes, the router
// never touches an untyped [opcode, ...args] tuple once a Message has
// been constructed at the transport/serialize boundary.
type Message interface {
	MessageType() MessageType
}

// Hello is sent by a client as the first message of a session, naming the
// realm it wishes to join and its details (roles, agent, authmethods).
type Hello struct {
	Realm   URI
	Details Dict
}

func (msg *Hello) MessageType() MessageType { return HELLO }

// Welcome is sent by the router in reply to an accepted HELLO.
type Welcome struct {
	ID      ID
	Details Dict
}

func (msg *Welcome) MessageType() MessageType { return WELCOME }

// Abort is sent by either side to abandon a session before or in place of
// a GOODBYE handshake.
type Abort struct {
	Details Dict
	Reason  URI
}

func (msg *Abort) MessageType() MessageType { return ABORT }

// Challenge is sent by the router during authentication methods that
// require a challenge/response round trip (e.g. WAMP-Ticket, WAMP-CRA).
type Challenge struct {
	AuthMethod string
	Extra      Dict
}

func (msg *Challenge) MessageType() MessageType { return CHALLENGE }

// Authenticate answers a Challenge with a signature computed over it.
type Authenticate struct {
	Signature string
	Extra     Dict
}

func (msg *Authenticate) MessageType() MessageType { return AUTHENTICATE }

// Goodbye is sent by either side to cleanly close an established session.
type Goodbye struct {
	Details Dict
	Reason  URI
}

func (msg *Goodbye) MessageType() MessageType { return GOODBYE }

// Error carries a failure in response to a request of the given
// RequestType (e.g. an INVOCATION that the callee could not satisfy).
type Error struct {
	RequestType MessageType
	Request     ID
	Details     Dict
	Error       URI
	Arguments   List
	ArgumentsKw Dict
}

func (msg *Error) MessageType() MessageType { return ERROR }

// Publish requests that the router fan a message out to subscribers of a
// topic.
type Publish struct {
	Request     ID
	Options     Dict
	Topic       URI
	Arguments   List
	ArgumentsKw Dict
}

func (msg *Publish) MessageType() MessageType { return PUBLISH }

// Published acknowledges a Publish that set options.acknowledge.
type Published struct {
	Request     ID
	Publication ID
}

func (msg *Published) MessageType() MessageType { return PUBLISHED }

// Subscribe requests a standing subscription to a topic pattern.
type Subscribe struct {
	Request ID
	Options Dict
	Topic   URI
}

func (msg *Subscribe) MessageType() MessageType { return SUBSCRIBE }

// Subscribed acknowledges a Subscribe, returning the new subscription id.
type Subscribed struct {
	Request      ID
	Subscription ID
}

func (msg *Subscribed) MessageType() MessageType { return SUBSCRIBED }

// Unsubscribe cancels a previously created subscription.
type Unsubscribe struct {
	Request      ID
	Subscription ID
}

func (msg *Unsubscribe) MessageType() MessageType { return UNSUBSCRIBE }

// Unsubscribed acknowledges an Unsubscribe.
type Unsubscribed struct {
	Request ID
}

func (msg *Unsubscribed) MessageType() MessageType { return UNSUBSCRIBED }

// Event delivers one publication to one subscriber.
type Event struct {
	Subscription ID
	Publication  ID
	Details      Dict
	Arguments    List
	ArgumentsKw  Dict
}

func (msg *Event) MessageType() MessageType { return EVENT }

// Call invokes a registered procedure.
type Call struct {
	Request     ID
	Options     Dict
	Procedure   URI
	Arguments   List
	ArgumentsKw Dict
}

func (msg *Call) MessageType() MessageType { return CALL }

// Result delivers the outcome of a successful Call.
type Result struct {
	Request     ID
	Details     Dict
	Arguments   List
	ArgumentsKw Dict
}

func (msg *Result) MessageType() MessageType { return RESULT }

// Register offers to serve calls matching a procedure pattern.
type Register struct {
	Request   ID
	Options   Dict
	Procedure URI
}

func (msg *Register) MessageType() MessageType { return REGISTER }

// Registered acknowledges a Register, returning the new registration id.
type Registered struct {
	Request      ID
	Registration ID
}

func (msg *Registered) MessageType() MessageType { return REGISTERED }

// Unregister cancels a previously created registration.
type Unregister struct {
	Request      ID
	Registration ID
}

func (msg *Unregister) MessageType() MessageType { return UNREGISTER }

// Unregistered acknowledges an Unregister.
type Unregistered struct {
	Request ID
}

func (msg *Unregistered) MessageType() MessageType { return UNREGISTERED }

// Invocation is router-originated: it delivers a call to the registered
// callee.  Request is drawn from the callee's own session-local counter.
type Invocation struct {
	Request      ID
	Registration ID
	Details      Dict
	Arguments    List
	ArgumentsKw  Dict
}

func (msg *Invocation) MessageType() MessageType { return INVOCATION }

// Yield answers an Invocation with a result.
type Yield struct {
	Request     ID
	Options     Dict
	Arguments   List
	ArgumentsKw Dict
}

func (msg *Yield) MessageType() MessageType { return YIELD }

// DecodeError stands in for a raw wire message that could not be turned
// into one of the typed Messages above: either its opcode is not one of
// the known constants, or its argument shape does not match any pattern
// recognized for that opcode.  It satisfies Message (with a sentinel,
// out-of-band MessageType) purely so it can flow through the same
// Peer.Recv() channel as legitimate messages; the session dispatch loop
// type-switches on it to decide which ABORT to send.
type DecodeError struct {
	Opcode MessageType
	// UnknownOpcode is true when Opcode itself is not recognized; false
	// means the opcode is known but its argument tuple failed pattern
	// validation.
	UnknownOpcode bool
}

// decodeErrorType is an opcode value no legitimate WAMP message ever
// uses, reserved to mark a DecodeError.
const decodeErrorType MessageType = -1

func (msg *DecodeError) MessageType() MessageType { return decodeErrorType }

func (msg *DecodeError) Error() string {
	if msg.UnknownOpcode {
		return "wamp: invalid opcode"
	}
	return "wamp: command syntax does not match any allowed syntaxes"
}
