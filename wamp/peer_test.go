package wamp

import (
	"testing"
	"time"
)

func TestLocalPipeRoundTrip(t *testing.T) {
	a, b := LocalPipe()
	defer a.Close()
	defer b.Close()

	hello := &Hello{Realm: "com.example.realm", Details: Dict{}}
	if err := a.Send(hello); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-b.Recv():
		got, ok := msg.(*Hello)
		if !ok || got.Realm != hello.Realm {
			t.Fatalf("got %#v, want %#v", msg, hello)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestRecvTimeout(t *testing.T) {
	a, b := LocalPipe()
	defer a.Close()
	defer b.Close()

	_, err := RecvTimeout(b, 20*time.Millisecond)
	if err != ErrRecvTimeout {
		t.Fatalf("expected ErrRecvTimeout, got %v", err)
	}

	a.Send(&Goodbye{Details: Dict{}, Reason: CloseGoodbyeAndOut})
	msg, err := RecvTimeout(b, time.Second)
	if err != nil {
		t.Fatalf("RecvTimeout: %v", err)
	}
	if msg.MessageType() != GOODBYE {
		t.Fatalf("expected GOODBYE, got %v", msg.MessageType())
	}
}

func TestLocalPipeSendAfterClose(t *testing.T) {
	a, b := LocalPipe()
	a.Close()
	if err := a.Send(&Goodbye{}); err == nil {
		t.Error("expected error sending on a closed peer")
	}
	if _, ok := <-b.Recv(); ok {
		t.Error("expected b's Recv channel to be closed")
	}
}
