package serialize

import "github.com/relaywamp/wampcore/wamp"

// patterns gives the argument-shape descriptor for every opcode the
// router accepts off the wire, per the argument pattern validator
// component.  A raw frame is validated against its opcode's pattern
// before Decode will construct a typed wamp.Message from it.
//
// CHALLENGE and AUTHENTICATE (the WAMP-Ticket/WAMP-CRA handshake
// messages) start with a bare string (the authmethod, or the signature)
// that the 'uri'/'id' token kinds don't describe; they are shape-checked ad hoc in Decode
// instead of through this table.
var patterns = map[wamp.MessageType]wamp.Pattern{
	wamp.HELLO:       wamp.NewPattern("uri", "dict"),
	wamp.ABORT:       wamp.NewPattern("dict", "uri"),
	wamp.GOODBYE:     wamp.NewPattern("dict", "uri!"),
	wamp.ERROR:       wamp.NewPattern("opcode", "id", "dict", "uri!", "list?", "dict?"),
	wamp.PUBLISH:     wamp.NewPattern("id", "dict", "uri", "list?", "dict?"),
	wamp.SUBSCRIBE:   wamp.NewPattern("id", "dict", "uri"),
	wamp.UNSUBSCRIBE: wamp.NewPattern("id", "id"),
	wamp.CALL:        wamp.NewPattern("id", "dict", "uri", "list?", "dict?"),
	wamp.REGISTER:    wamp.NewPattern("id", "dict", "uri"),
	wamp.UNREGISTER:  wamp.NewPattern("id", "id"),
	wamp.YIELD:       wamp.NewPattern("id", "dict", "list?", "dict?"),
}
