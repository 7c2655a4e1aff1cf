// Package serialize turns a raw wire frame — an ordered
// [opcode, ...args] sequence, exactly as it arrives off a transport once
// its codec has unmarshaled one message — into a typed wamp.Message, and
// back. It owns the argument pattern validation step so that, per the
// design notes, nothing past this boundary ever touches an untyped
// argument tuple again.
package serialize

import (
	"github.com/relaywamp/wampcore/wamp"
)

// Decode validates a raw frame against the pattern for its opcode and,
// if it matches, builds the corresponding typed wamp.Message.  An
// unrecognized opcode or an argument tuple that fails pattern validation
// both produce a *wamp.DecodeError rather than a Go error return, so
// that a Peer's Recv() channel can carry the failure through to the
// session dispatch loop uniformly with legitimate messages (see
// wamp.DecodeError).
func Decode(opcode int, args []interface{}) wamp.Message {
	mt := wamp.MessageType(opcode)
	if !wamp.KnownOpcode(opcode) {
		return &wamp.DecodeError{Opcode: mt, UnknownOpcode: true}
	}

	switch mt {
	case wamp.CHALLENGE:
		if len(args) != 2 {
			return &wamp.DecodeError{Opcode: mt}
		}
		authMethod, ok := args[0].(string)
		if !ok {
			return &wamp.DecodeError{Opcode: mt}
		}
		return &wamp.Challenge{AuthMethod: authMethod, Extra: toDict(args[1])}
	case wamp.AUTHENTICATE:
		if len(args) != 2 {
			return &wamp.DecodeError{Opcode: mt}
		}
		signature, ok := args[0].(string)
		if !ok {
			return &wamp.DecodeError{Opcode: mt}
		}
		return &wamp.Authenticate{Signature: signature, Extra: toDict(args[1])}
	}

	pat, ok := patterns[mt]
	if !ok {
		return &wamp.DecodeError{Opcode: mt, UnknownOpcode: true}
	}
	if !pat.Match(args...) {
		return &wamp.DecodeError{Opcode: mt}
	}

	switch mt {
	case wamp.HELLO:
		return &wamp.Hello{Realm: wamp.URI(args[0].(string)), Details: toDict(args[1])}
	case wamp.ABORT:
		return &wamp.Abort{Details: toDict(args[0]), Reason: wamp.URI(args[1].(string))}
	case wamp.GOODBYE:
		return &wamp.Goodbye{Details: toDict(args[0]), Reason: toURI(args, 1)}
	case wamp.ERROR:
		e := &wamp.Error{
			RequestType: wamp.MessageType(toInt(args[0])),
			Request:     toID(args[1]),
			Details:     toDict(args[2]),
			Error:       wamp.URI(args[3].(string)),
		}
		if len(args) > 4 {
			e.Arguments = toList(args[4])
		}
		if len(args) > 5 {
			e.ArgumentsKw = toDict(args[5])
		}
		return e
	case wamp.PUBLISH:
		p := &wamp.Publish{Request: toID(args[0]), Options: toDict(args[1]), Topic: wamp.URI(args[2].(string))}
		if len(args) > 3 {
			p.Arguments = toList(args[3])
		}
		if len(args) > 4 {
			p.ArgumentsKw = toDict(args[4])
		}
		return p
	case wamp.SUBSCRIBE:
		return &wamp.Subscribe{Request: toID(args[0]), Options: toDict(args[1]), Topic: wamp.URI(args[2].(string))}
	case wamp.UNSUBSCRIBE:
		return &wamp.Unsubscribe{Request: toID(args[0]), Subscription: toID(args[1])}
	case wamp.CALL:
		c := &wamp.Call{Request: toID(args[0]), Options: toDict(args[1]), Procedure: wamp.URI(args[2].(string))}
		if len(args) > 3 {
			c.Arguments = toList(args[3])
		}
		if len(args) > 4 {
			c.ArgumentsKw = toDict(args[4])
		}
		return c
	case wamp.REGISTER:
		return &wamp.Register{Request: toID(args[0]), Options: toDict(args[1]), Procedure: wamp.URI(args[2].(string))}
	case wamp.UNREGISTER:
		return &wamp.Unregister{Request: toID(args[0]), Registration: toID(args[1])}
	case wamp.YIELD:
		y := &wamp.Yield{Request: toID(args[0]), Options: toDict(args[1])}
		if len(args) > 2 {
			y.Arguments = toList(args[2])
		}
		if len(args) > 3 {
			y.ArgumentsKw = toDict(args[3])
		}
		return y
	default:
		return &wamp.DecodeError{Opcode: mt, UnknownOpcode: true}
	}
}

func toDict(v interface{}) wamp.Dict {
	d, _ := wamp.AsDict(v)
	return d
}

func toList(v interface{}) wamp.List {
	switch l := v.(type) {
	case wamp.List:
		return l
	case []interface{}:
		return wamp.List(l)
	default:
		return nil
	}
}

func toID(v interface{}) wamp.ID {
	switch n := v.(type) {
	case wamp.ID:
		return n
	case int:
		return wamp.ID(n)
	case int64:
		return wamp.ID(n)
	case uint64:
		return wamp.ID(n)
	case float64:
		return wamp.ID(n)
	default:
		return 0
	}
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// toURI reads an optional trailing URI argument (GOODBYE's reason is
// marked 'uri!' but may still be validated-but-absent under a lenient
// peer; in practice the pattern requires it, so this always has an
// element to read).
func toURI(args []interface{}, i int) wamp.URI {
	if i >= len(args) {
		return ""
	}
	s, _ := args[i].(string)
	return wamp.URI(s)
}
