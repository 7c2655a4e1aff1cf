package wamp

import "strings"

// UnknownPatternError is raised when a Pattern is constructed with a
// token whose base kind is not recognized.  This is a developer error,
// not a protocol violation: it is caught at Pattern construction time,
// never while validating a live argument tuple.
type UnknownPatternError string

func (e UnknownPatternError) Error() string {
	return string(e) + " is not a known pattern matcher"
}

type patternToken struct {
	base     string
	optional bool
	system   bool
}

// Pattern is a concise shape descriptor for a WAMP message's argument
// tuple, as used by the serialize package's per-opcode table to validate a raw
// [opcode, ...args] tuple before it is trusted enough to build a typed
// Message.  Each token is one of uri, id, opcode, dict, list, optionally
// suffixed with '?' (optional - tuple may end before this token) and/or
// '!' (system - relaxes the "wamp." URI prefix ban).
type Pattern []patternToken

// NewPattern parses a sequence of token descriptors, e.g.
// NewPattern("id", "dict", "uri", "list?", "dict?").  It panics on an
// unknown base kind, since a bad pattern descriptor is an internal
// programming error, never a runtime/protocol condition.
func NewPattern(tokens ...string) Pattern {
	pat := make(Pattern, len(tokens))
	for i, tok := range tokens {
		optional := strings.HasSuffix(tok, "?")
		tok = strings.TrimSuffix(tok, "?")
		system := strings.HasSuffix(tok, "!")
		tok = strings.TrimSuffix(tok, "!")
		switch tok {
		case "uri", "id", "opcode", "dict", "list":
		default:
			panic(UnknownPatternError(tok))
		}
		pat[i] = patternToken{base: tok, optional: optional, system: system}
	}
	return pat
}

// Match reports whether args is a legal instance of the pattern: no more
// arguments than pattern tokens, every non-optional token present, and
// every present argument's runtime shape consistent with its token's
// base kind.
func (p Pattern) Match(args ...interface{}) bool {
	if len(args) > len(p) {
		return false
	}
	for i, tok := range p {
		if i >= len(args) {
			if tok.optional {
				return true
			}
			return false
		}
		if !matchToken(tok, args[i]) {
			return false
		}
	}
	return true
}

func matchToken(tok patternToken, value interface{}) bool {
	switch tok.base {
	case "uri":
		s, ok := value.(string)
		if !ok {
			if u, ok2 := value.(URI); ok2 {
				s = string(u)
				ok = true
			}
		}
		if !ok || !URI(s).ValidURI(false, "") {
			return false
		}
		if !tok.system && URI(s).AllowsWAMP() {
			return false
		}
		return true
	case "id":
		id, ok := asID(value)
		if !ok {
			return false
		}
		return id >= MinID && id <= MaxID
	case "opcode":
		n, ok := asInt(value)
		if !ok {
			return false
		}
		return KnownOpcode(n)
	case "dict":
		_, ok := AsDict(value)
		return ok
	case "list":
		switch value.(type) {
		case List, []interface{}:
			return true
		default:
			return false
		}
	default:
		panic(UnknownPatternError(tok.base))
	}
}

func asID(v interface{}) (ID, bool) {
	switch n := v.(type) {
	case ID:
		return n, true
	case int:
		return ID(n), true
	case int64:
		return ID(n), true
	case uint64:
		return ID(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return ID(n), true
	default:
		return 0, false
	}
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case MessageType:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
