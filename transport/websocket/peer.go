// Package websocket adapts github.com/gorilla/websocket connections to
// the wamp.Peer contract, so that router.Router.Attach (server side) and
// client.JoinSession (client side) can run over real network sockets
// instead of the in-process wamp.LocalPipe used by tests.
package websocket

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaywamp/wampcore/serialize"
	"github.com/relaywamp/wampcore/wamp"
)

const (
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingPeriod   = (pongTimeout * 9) / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 10 * time.Second,
	Subprotocols:     []string{"wamp.2.json", "wamp.2.msgpack"},
}

// peer wraps one *websocket.Conn as a wamp.Peer: a read pump decodes
// incoming frames onto a buffered channel, and Send serializes writes
// through a single goroutine, since gorilla/websocket connections are
// not safe for concurrent writers.
type peer struct {
	conn        *websocket.Conn
	codec       serialize.Codec
	frameType   int

	in     chan wamp.Message
	out    chan wamp.Message
	closed chan struct{}
	once   sync.Once
}

func newPeer(conn *websocket.Conn, codec serialize.Codec, frameType int) *peer {
	p := &peer{
		conn:      conn,
		codec:     codec,
		frameType: frameType,
		in:        make(chan wamp.Message, 16),
		out:       make(chan wamp.Message, 16),
		closed:    make(chan struct{}),
	}
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	go p.readPump()
	go p.writePump()
	return p
}

// codecForSubprotocol picks the wire codec and WebSocket frame type
// matching the negotiated subprotocol, defaulting to JSON text frames
// when the peer did not negotiate one of the two WAMP subprotocols.
func codecForSubprotocol(name string) (serialize.Codec, int) {
	if name == "wamp.2.msgpack" {
		return serialize.MsgpackCodec(), websocket.BinaryMessage
	}
	return serialize.JSONCodec(), websocket.TextMessage
}

// Accept upgrades an incoming HTTP request to a WebSocket connection and
// returns it wrapped as a wamp.Peer ready to pass to Router.Attach.
func Accept(w http.ResponseWriter, r *http.Request) (wamp.Peer, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	codec, frameType := codecForSubprotocol(conn.Subprotocol())
	return newPeer(conn, codec, frameType), nil
}

// Dial connects to a WAMP router listening at url (ws:// or wss://) and
// returns the connection wrapped as a wamp.Peer ready to pass to
// client.JoinSession.
func Dial(url string) (wamp.Peer, error) {
	dialer := websocket.Dialer{
		Subprotocols:     []string{"wamp.2.json", "wamp.2.msgpack"},
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	codec, frameType := codecForSubprotocol(conn.Subprotocol())
	return newPeer(conn, codec, frameType), nil
}

func (p *peer) readPump() {
	defer close(p.in)
	defer p.Close()
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := p.codec.Unmarshal(data)
		if err != nil {
			msg = &wamp.DecodeError{UnknownOpcode: true}
		}
		select {
		case p.in <- msg:
		case <-p.closed:
			return
		}
	}
}

func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer p.Close()

	for {
		select {
		case msg, ok := <-p.out:
			if !ok {
				return
			}
			data, err := p.codec.Marshal(msg)
			if err != nil {
				continue
			}
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(p.frameType, data); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-p.closed:
			return
		}
	}
}

func (p *peer) Send(msg wamp.Message) error {
	select {
	case <-p.closed:
		return errors.New("websocket: send on closed peer")
	default:
	}
	select {
	case p.out <- msg:
		return nil
	case <-p.closed:
		return errors.New("websocket: send on closed peer")
	}
}

func (p *peer) Recv() <-chan wamp.Message { return p.in }

func (p *peer) Close() error {
	p.once.Do(func() {
		close(p.closed)
		p.conn.Close()
	})
	return nil
}
