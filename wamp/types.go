package wamp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"
)

// ID is a WAMP identifier: an integer in [1, 2^53].
type ID uint64

// MinID and MaxID bound the legal range of a WAMP identifier.
const (
	MinID ID = 1
	MaxID ID = 1 << 53
)

// URI is a dot-separated WAMP URI: a sequence of components each matching
// [0-9a-z_]+.  The reserved top-level component "wamp" is forbidden for
// user-supplied URIs.
type URI string

var uriPattern = regexp.MustCompile(`^([0-9a-z_]+\.)*[0-9a-z_]+$`)

// ValidURI reports whether u is a syntactically legal URI: one or more
// dot-separated components, each matching [0-9a-z_]+.  The empty string
// is never valid.  strict and emptyOK do not change the result, and a
// leading "wamp" component is not checked here (see AllowsWAMP).
func (u URI) ValidURI(strict bool, emptyOK string) bool {
	s := string(u)
	if s == "" {
		return false
	}
	if !uriPattern.MatchString(s) {
		return false
	}
	return true
}

// AllowsWAMP reports whether u's first component is the reserved "wamp"
// literal.
func (u URI) AllowsWAMP() bool {
	first := string(u)
	if i := strings.IndexByte(first, '.'); i >= 0 {
		first = first[:i]
	}
	return first == "wamp"
}

// Dict is an untyped string-keyed map, as carried in WAMP message
// "details"/"options"/"kwargs" fields.
type Dict map[string]interface{}

// List is an untyped ordered sequence, as carried in WAMP message "args"
// fields.
type List []interface{}

// AsDict attempts to coerce v, which may already be a Dict, a
// map[string]interface{}, or something requiring normalization, into a
// Dict.
func AsDict(v interface{}) (Dict, bool) {
	switch d := v.(type) {
	case Dict:
		return d, true
	case map[string]interface{}:
		return Dict(d), true
	default:
		return nil, false
	}
}

// NormalizeDict converts v into a Dict if possible, returning nil if v
// cannot be interpreted as one.  Unlike AsDict, it does not report the
// coercion outcome separately; callers that need to distinguish "empty
// dict" from "not a dict" should use AsDict instead.
func NormalizeDict(v interface{}) Dict {
	switch d := v.(type) {
	case Dict:
		return d
	case map[string]interface{}:
		return Dict(d)
	default:
		return nil
	}
}

// DictValue walks a Dict following the given key path and returns the
// value found there, or an error if any path component is missing or the
// value along the path is not itself a Dict.
func DictValue(dict Dict, path []string) (interface{}, error) {
	var cur interface{} = dict
	for i, key := range path {
		d, ok := AsDict(cur)
		if !ok {
			return nil, fmt.Errorf("value at %q is not a dict", strings.Join(path[:i], "."))
		}
		v, ok := d[key]
		if !ok {
			return nil, fmt.Errorf("no value at key %q", key)
		}
		cur = v
	}
	return cur, nil
}

// ListValue returns the List stored in dict at key, if present and of the
// right type.
func ListValue(dict Dict, key string) (List, bool) {
	v, ok := dict[key]
	if !ok {
		return nil, false
	}
	switch l := v.(type) {
	case List:
		return l, true
	case []interface{}:
		return List(l), true
	default:
		return nil, false
	}
}

// GlobalID returns a randomly chosen identifier in [1, 2^53], suitable for
// publication, subscription, and registration ids, and the WELCOME session
// id.  Collisions are statistically negligible and are not guarded
// against, per the data model's identifier invariant. Drawn from
// crypto/rand rather than math/rand since these ids (especially the
// session id handed back in WELCOME) are observable identifiers that
// should not be predictable from one session to the next.
func GlobalID() ID {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	span := uint64(MaxID) - uint64(MinID) + 1
	return ID(binary.BigEndian.Uint64(buf[:])%span) + MinID
}
