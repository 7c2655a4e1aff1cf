package serialize

import "github.com/relaywamp/wampcore/wamp"

// Encode flattens a typed wamp.Message back into a raw [opcode, ...args]
// frame, applying the normative arg-append rule (append args only when
// present, kwargs only when args is also present) for every message
// shape that carries optional trailing arguments.
func Encode(msg wamp.Message) []interface{} {
	switch m := msg.(type) {
	case *wamp.Hello:
		return []interface{}{int(wamp.HELLO), string(m.Realm), m.Details}
	case *wamp.Welcome:
		return []interface{}{int(wamp.WELCOME), uint64(m.ID), m.Details}
	case *wamp.Abort:
		return []interface{}{int(wamp.ABORT), m.Details, string(m.Reason)}
	case *wamp.Challenge:
		return []interface{}{int(wamp.CHALLENGE), m.AuthMethod, m.Extra}
	case *wamp.Authenticate:
		return []interface{}{int(wamp.AUTHENTICATE), m.Signature, m.Extra}
	case *wamp.Goodbye:
		return []interface{}{int(wamp.GOODBYE), m.Details, string(m.Reason)}
	case *wamp.Error:
		frame := []interface{}{int(wamp.ERROR), int(m.RequestType), uint64(m.Request), m.Details, string(m.Error)}
		return appendOptional(frame, m.Arguments, m.ArgumentsKw)
	case *wamp.Publish:
		frame := []interface{}{int(wamp.PUBLISH), uint64(m.Request), m.Options, string(m.Topic)}
		return appendOptional(frame, m.Arguments, m.ArgumentsKw)
	case *wamp.Published:
		return []interface{}{int(wamp.PUBLISHED), uint64(m.Request), uint64(m.Publication)}
	case *wamp.Subscribe:
		return []interface{}{int(wamp.SUBSCRIBE), uint64(m.Request), m.Options, string(m.Topic)}
	case *wamp.Subscribed:
		return []interface{}{int(wamp.SUBSCRIBED), uint64(m.Request), uint64(m.Subscription)}
	case *wamp.Unsubscribe:
		return []interface{}{int(wamp.UNSUBSCRIBE), uint64(m.Request), uint64(m.Subscription)}
	case *wamp.Unsubscribed:
		return []interface{}{int(wamp.UNSUBSCRIBED), uint64(m.Request)}
	case *wamp.Event:
		frame := []interface{}{int(wamp.EVENT), uint64(m.Subscription), uint64(m.Publication), m.Details}
		return appendOptional(frame, m.Arguments, m.ArgumentsKw)
	case *wamp.Call:
		frame := []interface{}{int(wamp.CALL), uint64(m.Request), m.Options, string(m.Procedure)}
		return appendOptional(frame, m.Arguments, m.ArgumentsKw)
	case *wamp.Result:
		frame := []interface{}{int(wamp.RESULT), uint64(m.Request), m.Details}
		return appendOptional(frame, m.Arguments, m.ArgumentsKw)
	case *wamp.Register:
		return []interface{}{int(wamp.REGISTER), uint64(m.Request), m.Options, string(m.Procedure)}
	case *wamp.Registered:
		return []interface{}{int(wamp.REGISTERED), uint64(m.Request), uint64(m.Registration)}
	case *wamp.Unregister:
		return []interface{}{int(wamp.UNREGISTER), uint64(m.Request), uint64(m.Registration)}
	case *wamp.Unregistered:
		return []interface{}{int(wamp.UNREGISTERED), uint64(m.Request)}
	case *wamp.Invocation:
		frame := []interface{}{int(wamp.INVOCATION), uint64(m.Request), uint64(m.Registration), m.Details}
		return appendOptional(frame, m.Arguments, m.ArgumentsKw)
	case *wamp.Yield:
		frame := []interface{}{int(wamp.YIELD), uint64(m.Request), m.Options}
		return appendOptional(frame, m.Arguments, m.ArgumentsKw)
	default:
		return nil
	}
}

func appendOptional(frame []interface{}, args wamp.List, kwargs wamp.Dict) []interface{} {
	if args == nil {
		return frame
	}
	frame = append(frame, args)
	if kwargs != nil {
		frame = append(frame, kwargs)
	}
	return frame
}
