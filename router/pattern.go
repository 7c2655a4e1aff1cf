package router

import (
	"strings"
	"sync"

	"github.com/relaywamp/wampcore/wamp"
)

// MatchPolicy selects how a registered URI pattern is compared against
// concrete URIs at lookup time.
type MatchPolicy int

const (
	// MatchExact requires the concrete URI to equal the pattern exactly.
	MatchExact MatchPolicy = iota
	// MatchPrefix matches any concrete URI that starts with the
	// pattern's components, component-boundary sensitive.
	MatchPrefix
	// MatchWildcard matches concrete URIs against a pattern containing
	// empty ("..") components, each of which matches exactly one
	// concrete component.
	MatchWildcard
)

// ParseMatchPolicy reads the WAMP "match" option value ("exact" is the
// default when absent or unrecognized).
func ParseMatchPolicy(v interface{}) MatchPolicy {
	s, _ := v.(string)
	switch s {
	case "prefix":
		return MatchPrefix
	case "wildcard":
		return MatchWildcard
	default:
		return MatchExact
	}
}

// entry is one (session, pattern id) pair installed at a trie node.
type entry struct {
	session *wamp.Session
	id      wamp.ID
}

// trieNode is one node of the URI component trie.  Children are keyed by
// literal component, by "" for a single-component wildcard, or by "*"
// for a prefix terminator.
type trieNode struct {
	parent    *trieNode
	parentKey string
	children  map[string]*trieNode
	entries   []entry
}

func newTrieNode(parent *trieNode, key string) *trieNode {
	return &trieNode{parent: parent, parentKey: key}
}

func (n *trieNode) empty() bool {
	return len(n.entries) == 0 && len(n.children) == 0
}

// PatternIndex is the trie-indexed registry of (session, pattern id)
// pairs keyed by URI pattern, as described in the URI pattern index
// component.  When allowDuplicate is false, a second registration
// attempt on a URI already covered by an existing entry at the same
// terminal node fails (used for the registration index); when true, any
// number of entries may share a terminal node (used for the
// subscription index).
type PatternIndex struct {
	mu             sync.Mutex
	root           *trieNode
	allowDuplicate bool
	// reverse maps a session to its owned pattern ids and the trie node
	// each lives at, for O(depth) unregistration and bulk session
	// eviction.
	reverse map[*wamp.Session]map[wamp.ID]*trieNode
}

// NewPatternIndex creates an empty index.
func NewPatternIndex(allowDuplicate bool) *PatternIndex {
	return &PatternIndex{
		root:           newTrieNode(nil, ""),
		allowDuplicate: allowDuplicate,
		reverse:        make(map[*wamp.Session]map[wamp.ID]*trieNode),
	}
}

func splitURI(uri wamp.URI, policy MatchPolicy) []string {
	comps := strings.Split(string(uri), ".")
	if policy == MatchPrefix {
		comps = append(comps, "*")
	}
	return comps
}

// Register installs a (session, pattern) entry for uri under the given
// match policy, returning the newly minted pattern id.  When the index
// disallows duplicates and the terminal node already holds an entry,
// Register returns (0, false).
func (idx *PatternIndex) Register(session *wamp.Session, uri wamp.URI, policy MatchPolicy) (wamp.ID, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	comps := splitURI(uri, policy)
	node := idx.root
	for _, c := range comps {
		if node.children == nil {
			node.children = make(map[string]*trieNode)
		}
		child, ok := node.children[c]
		if !ok {
			child = newTrieNode(node, c)
			node.children[c] = child
		}
		node = child
	}

	if !idx.allowDuplicate && len(node.entries) > 0 {
		return 0, false
	}

	id := wamp.GlobalID()
	node.entries = append(node.entries, entry{session: session, id: id})

	owned, ok := idx.reverse[session]
	if !ok {
		owned = make(map[wamp.ID]*trieNode)
		idx.reverse[session] = owned
	}
	owned[id] = node

	return id, true
}

// Unregister removes the entry (session, id), running structural
// cleanup on the trie afterward.  It reports whether the pair was known.
func (idx *PatternIndex) Unregister(session *wamp.Session, id wamp.ID) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	owned, ok := idx.reverse[session]
	if !ok {
		return false
	}
	node, ok := owned[id]
	if !ok {
		return false
	}
	delete(owned, id)
	if len(owned) == 0 {
		delete(idx.reverse, session)
	}

	idx.removeEntry(node, session, id)
	idx.cleanup(node)
	return true
}

// UnregisterSession removes every entry owned by session.
func (idx *PatternIndex) UnregisterSession(session *wamp.Session) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	owned, ok := idx.reverse[session]
	if !ok {
		return
	}
	delete(idx.reverse, session)

	for id, node := range owned {
		idx.removeEntry(node, session, id)
		idx.cleanup(node)
	}
}

func (idx *PatternIndex) removeEntry(node *trieNode, session *wamp.Session, id wamp.ID) {
	for i, e := range node.entries {
		if e.session == session && e.id == id {
			node.entries = append(node.entries[:i], node.entries[i+1:]...)
			return
		}
	}
}

// cleanup removes node from its parent, and ascends, if node and its
// ancestors are left with no entries and no children.
func (idx *PatternIndex) cleanup(node *trieNode) {
	for node != nil && node.parent != nil && node.empty() {
		parent := node.parent
		delete(parent.children, node.parentKey)
		node = parent
	}
}

// Match returns every (session, pattern id) entry whose pattern covers
// the concrete uri.  Order is unspecified except that the first element
// is produced by a depth-first traversal preferring literal children,
// then wildcard, then prefix.
func (idx *PatternIndex) Match(uri wamp.URI) []struct {
	Session *wamp.Session
	ID      wamp.ID
} {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	comps := strings.Split(string(uri), ".")
	var found []entry
	idx.matchNode(idx.root, comps, &found, false)

	out := make([]struct {
		Session *wamp.Session
		ID      wamp.ID
	}, len(found))
	for i, e := range found {
		out[i].Session = e.session
		out[i].ID = e.id
	}
	return out
}

// MatchOne returns the single match selected by the depth-first,
// literal-before-wildcard-before-prefix traversal order, or ok=false if
// nothing matches.  Used by the single-holder registration index, where
// at most one registration can ever cover a given concrete URI.
func (idx *PatternIndex) MatchOne(uri wamp.URI) (session *wamp.Session, id wamp.ID, ok bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	comps := strings.Split(string(uri), ".")
	var found []entry
	idx.matchNode(idx.root, comps, &found, true)
	if len(found) == 0 {
		return nil, 0, false
	}
	return found[0].session, found[0].id, true
}

// matchNode implements the trie walk described in the URI pattern index
// component.  When single is true, it stops as soon as one match has
// been appended to *found.
func (idx *PatternIndex) matchNode(node *trieNode, comps []string, found *[]entry, single bool) bool {
	if len(comps) == 0 {
		if len(node.entries) > 0 {
			*found = append(*found, node.entries...)
			if single {
				return true
			}
		}
		if child, ok := node.children["*"]; ok && len(child.entries) > 0 {
			*found = append(*found, child.entries...)
			return single
		}
		return false
	}

	head, rest := comps[0], comps[1:]

	if child, ok := node.children[head]; ok {
		if idx.matchNode(child, rest, found, single) && single {
			return true
		}
	}
	if child, ok := node.children[""]; ok {
		if idx.matchNode(child, rest, found, single) && single {
			return true
		}
	}
	if child, ok := node.children["*"]; ok && len(child.entries) > 0 {
		*found = append(*found, child.entries...)
		if single {
			return true
		}
	}
	return false
}
