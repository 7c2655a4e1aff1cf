// Package client provides a minimal in-process WAMP client: the peer
// side of the session state machine implemented by the router package.
// It speaks the same typed wamp.Message union, so it can join a Router
// directly over wamp.LocalPipe or any other wamp.Peer implementation
// (e.g. a websocket transport) without a wire codec in between.
package client

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relaywamp/wampcore/wamp"
)

// EventHandler receives one published event for a subscribed topic.
type EventHandler func(args wamp.List, kwargs wamp.Dict, details wamp.Dict)

// InvocationHandler serves one call for a registered procedure. A
// non-nil error becomes an ERROR reply to the caller with the error URI
// com.example.error.call_failed and err.Error() as its only argument;
// an error text that is itself URI-shaped is not used as the error URI.
type InvocationHandler func(args wamp.List, kwargs wamp.Dict, details wamp.Dict) (wamp.List, wamp.Dict, error)

// callTimeout bounds how long Subscribe/Unsubscribe/Publish(ack)/Call/
// Register/Unregister wait for the router's reply.
const callTimeout = 30 * time.Second

// Client is a joined WAMP session maintained from the peer side: it owns
// the receive loop that both answers RPC replies (by request id) and
// dispatches EVENT/INVOCATION traffic to application handlers.
type Client struct {
	peer    wamp.Peer
	realm   wamp.URI
	id      wamp.ID
	details wamp.Dict

	lastID uint64

	mu            sync.Mutex
	pending       map[wamp.ID]chan wamp.Message
	subsByID      map[wamp.ID]EventHandler
	subsByTopic   map[wamp.URI]wamp.ID
	regsByID      map[wamp.ID]InvocationHandler
	regsByProc    map[wamp.URI]wamp.ID
	closed        bool
	done          chan struct{}
}

// JoinSession sends HELLO over peer and waits for WELCOME (or ABORT),
// then starts the receive loop. details is merged into the HELLO's
// details; a "roles" key is always added/overwritten to announce every
// role this client implements.
func JoinSession(peer wamp.Peer, realm wamp.URI, details wamp.Dict) (*Client, error) {
	if details == nil {
		details = wamp.Dict{}
	} else {
		merged := wamp.Dict{}
		for k, v := range details {
			merged[k] = v
		}
		details = merged
	}
	details["roles"] = wamp.Dict{
		"publisher":  wamp.Dict{},
		"subscriber": wamp.Dict{},
		"caller":     wamp.Dict{},
		"callee":     wamp.Dict{},
	}

	if err := peer.Send(&wamp.Hello{Realm: realm, Details: details}); err != nil {
		return nil, fmt.Errorf("client: sending HELLO: %w", err)
	}

	msg, err := wamp.RecvTimeout(peer, callTimeout)
	if err != nil {
		return nil, fmt.Errorf("client: waiting for WELCOME: %w", err)
	}
	switch m := msg.(type) {
	case *wamp.Welcome:
		c := &Client{
			peer:        peer,
			realm:       realm,
			id:          m.ID,
			details:     m.Details,
			pending:     make(map[wamp.ID]chan wamp.Message),
			subsByID:    make(map[wamp.ID]EventHandler),
			subsByTopic: make(map[wamp.URI]wamp.ID),
			regsByID:    make(map[wamp.ID]InvocationHandler),
			regsByProc:  make(map[wamp.URI]wamp.ID),
			done:        make(chan struct{}),
		}
		go c.recvLoop()
		return c, nil
	case *wamp.Abort:
		return nil, fmt.Errorf("client: HELLO aborted: %s: %v", m.Reason, m.Details)
	default:
		return nil, fmt.Errorf("client: unexpected reply to HELLO: %s", msg.MessageType())
	}
}

func (c *Client) nextID() wamp.ID {
	return wamp.ID(atomic.AddUint64(&c.lastID, 1))
}

// ID returns the session id assigned by the router's WELCOME.
func (c *Client) ID() wamp.ID { return c.id }

// Done returns a channel that closes when the session ends, whether by
// Close or because the transport was lost.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) recvLoop() {
	defer close(c.done)
	for msg := range c.peer.Recv() {
		switch m := msg.(type) {
		case *wamp.Event:
			c.mu.Lock()
			h := c.subsByID[m.Subscription]
			c.mu.Unlock()
			if h != nil {
				h(m.Arguments, m.ArgumentsKw, m.Details)
			}
		case *wamp.Invocation:
			c.handleInvocation(m)
		case *wamp.Goodbye:
			return
		case *wamp.Abort:
			return
		default:
			c.resolve(requestIDOf(msg), msg)
		}
	}
}

// requestIDOf extracts the correlating request id from a reply message,
// or 0 for messages that carry none (EVENT, INVOCATION, GOODBYE, ABORT -
// handled separately in recvLoop before this is ever called on them).
func requestIDOf(msg wamp.Message) wamp.ID {
	switch m := msg.(type) {
	case *wamp.Subscribed:
		return m.Request
	case *wamp.Unsubscribed:
		return m.Request
	case *wamp.Published:
		return m.Request
	case *wamp.Registered:
		return m.Request
	case *wamp.Unregistered:
		return m.Request
	case *wamp.Result:
		return m.Request
	case *wamp.Error:
		return m.Request
	default:
		return 0
	}
}

func (c *Client) handleInvocation(inv *wamp.Invocation) {
	c.mu.Lock()
	h := c.regsByID[inv.Registration]
	c.mu.Unlock()
	if h == nil {
		c.send(&wamp.Error{RequestType: wamp.INVOCATION, Request: inv.Request, Details: wamp.Dict{}, Error: wamp.ErrNoSuchProcedure})
		return
	}
	args, kwargs, err := h(inv.Arguments, inv.ArgumentsKw, inv.Details)
	if err != nil {
		c.send(&wamp.Error{RequestType: wamp.INVOCATION, Request: inv.Request, Details: wamp.Dict{}, Error: wamp.URI("com.example.error.call_failed"), Arguments: wamp.List{err.Error()}})
		return
	}
	c.send(&wamp.Yield{Request: inv.Request, Options: wamp.Dict{}, Arguments: args, ArgumentsKw: kwargs})
}

func (c *Client) send(msg wamp.Message) error {
	return c.peer.Send(msg)
}

// await registers a pending reply channel for requestID and blocks until
// a message with that request id arrives, the timeout elapses, or the
// session ends.
func (c *Client) await(requestID wamp.ID) (wamp.Message, error) {
	ch := make(chan wamp.Message, 1)
	c.mu.Lock()
	c.pending[requestID] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, requestID)
		c.mu.Unlock()
	}()

	select {
	case msg := <-ch:
		return msg, nil
	case <-time.After(callTimeout):
		return nil, errors.New("client: timed out waiting for reply")
	case <-c.done:
		return nil, errors.New("client: session ended while awaiting reply")
	}
}

func (c *Client) resolve(requestID wamp.ID, msg wamp.Message) {
	c.mu.Lock()
	ch := c.pending[requestID]
	c.mu.Unlock()
	if ch != nil {
		ch <- msg
	}
}

// Subscribe installs handler for topic under the match policy named in
// options["match"] (exact, by default) and blocks until the router
// confirms it.
func (c *Client) Subscribe(topic wamp.URI, handler EventHandler, options wamp.Dict) error {
	if options == nil {
		options = wamp.Dict{}
	}
	reqID := c.nextID()
	if err := c.send(&wamp.Subscribe{Request: reqID, Options: options, Topic: topic}); err != nil {
		return err
	}
	reply, err := c.await(reqID)
	if err != nil {
		return err
	}
	switch m := reply.(type) {
	case *wamp.Subscribed:
		c.mu.Lock()
		c.subsByID[m.Subscription] = handler
		c.subsByTopic[topic] = m.Subscription
		c.mu.Unlock()
		return nil
	case *wamp.Error:
		return fmt.Errorf("client: subscribe failed: %s", m.Error)
	default:
		return fmt.Errorf("client: unexpected reply to SUBSCRIBE: %s", reply.MessageType())
	}
}

// Unsubscribe cancels the subscription previously installed for topic.
func (c *Client) Unsubscribe(topic wamp.URI) error {
	c.mu.Lock()
	subID, ok := c.subsByTopic[topic]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("client: not subscribed to %s", topic)
	}

	reqID := c.nextID()
	if err := c.send(&wamp.Unsubscribe{Request: reqID, Subscription: subID}); err != nil {
		return err
	}
	reply, err := c.await(reqID)
	if err != nil {
		return err
	}
	switch m := reply.(type) {
	case *wamp.Unsubscribed:
		c.mu.Lock()
		delete(c.subsByID, subID)
		delete(c.subsByTopic, topic)
		c.mu.Unlock()
		return nil
	case *wamp.Error:
		return fmt.Errorf("client: unsubscribe failed: %s", m.Error)
	default:
		return fmt.Errorf("client: unexpected reply to UNSUBSCRIBE: %s", reply.MessageType())
	}
}

// Publish sends args/kwargs to topic. When options["acknowledge"] is
// true, Publish blocks for the router's PUBLISHED/ERROR reply; otherwise
// it returns as soon as the message is written.
func (c *Client) Publish(topic wamp.URI, options wamp.Dict, args wamp.List, kwargs wamp.Dict) error {
	if options == nil {
		options = wamp.Dict{}
	}
	reqID := c.nextID()
	msg := &wamp.Publish{Request: reqID, Options: options, Topic: topic, Arguments: args, ArgumentsKw: kwargs}

	ack, _ := options["acknowledge"].(bool)
	if !ack {
		return c.send(msg)
	}
	if err := c.send(msg); err != nil {
		return err
	}
	reply, err := c.await(reqID)
	if err != nil {
		return err
	}
	if errMsg, ok := reply.(*wamp.Error); ok {
		return fmt.Errorf("client: publish failed: %s", errMsg.Error)
	}
	return nil
}

// Register offers handler to serve calls to procedure.
func (c *Client) Register(procedure wamp.URI, handler InvocationHandler, options wamp.Dict) error {
	if options == nil {
		options = wamp.Dict{}
	}
	reqID := c.nextID()
	if err := c.send(&wamp.Register{Request: reqID, Options: options, Procedure: procedure}); err != nil {
		return err
	}
	reply, err := c.await(reqID)
	if err != nil {
		return err
	}
	switch m := reply.(type) {
	case *wamp.Registered:
		c.mu.Lock()
		c.regsByID[m.Registration] = handler
		c.regsByProc[procedure] = m.Registration
		c.mu.Unlock()
		return nil
	case *wamp.Error:
		return fmt.Errorf("client: register failed: %s", m.Error)
	default:
		return fmt.Errorf("client: unexpected reply to REGISTER: %s", reply.MessageType())
	}
}

// Unregister withdraws a previously registered procedure.
func (c *Client) Unregister(procedure wamp.URI) error {
	c.mu.Lock()
	regID, ok := c.regsByProc[procedure]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("client: %s is not registered", procedure)
	}

	reqID := c.nextID()
	if err := c.send(&wamp.Unregister{Request: reqID, Registration: regID}); err != nil {
		return err
	}
	reply, err := c.await(reqID)
	if err != nil {
		return err
	}
	switch m := reply.(type) {
	case *wamp.Unregistered:
		c.mu.Lock()
		delete(c.regsByID, regID)
		delete(c.regsByProc, procedure)
		c.mu.Unlock()
		return nil
	case *wamp.Error:
		return fmt.Errorf("client: unregister failed: %s", m.Error)
	default:
		return fmt.Errorf("client: unexpected reply to UNREGISTER: %s", reply.MessageType())
	}
}

// Call invokes procedure and blocks for its RESULT.
func (c *Client) Call(procedure wamp.URI, options wamp.Dict, args wamp.List, kwargs wamp.Dict) (*wamp.Result, error) {
	if options == nil {
		options = wamp.Dict{}
	}
	reqID := c.nextID()
	msg := &wamp.Call{Request: reqID, Options: options, Procedure: procedure, Arguments: args, ArgumentsKw: kwargs}
	if err := c.send(msg); err != nil {
		return nil, err
	}
	reply, err := c.await(reqID)
	if err != nil {
		return nil, err
	}
	switch m := reply.(type) {
	case *wamp.Result:
		return m, nil
	case *wamp.Error:
		return nil, fmt.Errorf("client: call failed: %s", m.Error)
	default:
		return nil, fmt.Errorf("client: unexpected reply to CALL: %s", reply.MessageType())
	}
}

// Close sends GOODBYE, waits (up to callTimeout) for the session to end,
// and tears down the transport.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if c.send(&wamp.Goodbye{Details: wamp.Dict{}, Reason: wamp.CloseGoodbyeAndOut}) == nil {
		select {
		case <-c.done:
		case <-time.After(callTimeout):
		}
	}
	return c.peer.Close()
}
