package transport

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/joe-el-khoury/fbzmq/internal/testutil/testlog"
)

func TestTCPRequestReplyExchange(t *testing.T) {
	testlog.Start(t)
	rep, err := bindTCPRep("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind rep: %v", err)
	}
	defer rep.Close()

	req, err := ConnectReq(rep.Addr())
	if err != nil {
		t.Fatalf("connect req: %v", err)
	}
	defer req.Close()

	done := make(chan error, 1)
	go func() {
		msg, err := rep.Recv(2 * time.Second)
		if err != nil {
			done <- err
			return
		}
		if string(msg) != "ping" {
			done <- fmt.Errorf("unexpected request: %q", msg)
			return
		}
		done <- rep.Send([]byte("pong"))
	}()

	if err := req.Send([]byte("ping")); err != nil {
		t.Fatalf("send: %v", err)
	}
	reply, err := req.Recv(2 * time.Second)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(reply) != "pong" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if err := <-done; err != nil {
		t.Fatalf("rep side: %v", err)
	}
}

func TestTCPRecvTimesOut(t *testing.T) {
	testlog.Start(t)
	rep, err := bindTCPRep("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind rep: %v", err)
	}
	defer rep.Close()

	if _, err := rep.Recv(10 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	req, err := ConnectReq(rep.Addr())
	if err != nil {
		t.Fatalf("connect req: %v", err)
	}
	defer req.Close()
	if err := req.Send([]byte("ask")); err != nil {
		t.Fatalf("send: %v", err)
	}
	// No reply is ever sent, so the client read times out too.
	go func() {
		rep.Recv(time.Second)
	}()
	if _, err := req.Recv(50 * time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestTCPBindConflict(t *testing.T) {
	testlog.Start(t)
	rep, err := bindTCPRep("127.0.0.1:0")
	if err != nil {
		t.Fatalf("bind rep: %v", err)
	}
	defer rep.Close()

	hostport := rep.ln.Addr().String()
	if _, err := bindTCPRep(hostport); err == nil {
		t.Fatal("expected bind conflict error")
	}
}

func TestTCPPubFanOutPreservesOrder(t *testing.T) {
	testlog.Start(t)
	pub, err := bindTCPPub("127.0.0.1:0", DefaultPubConfig())
	if err != nil {
		t.Fatalf("bind pub: %v", err)
	}
	defer pub.Close()

	subA, err := ConnectSub(pub.Addr())
	if err != nil {
		t.Fatalf("connect sub a: %v", err)
	}
	defer subA.Close()
	subB, err := ConnectSub(pub.Addr())
	if err != nil {
		t.Fatalf("connect sub b: %v", err)
	}
	defer subB.Close()

	waitForSubscribers(t, pub, 2)

	for i := 0; i < 10; i++ {
		if err := pub.Send([]byte{byte(i)}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	for _, sub := range []SubSocket{subA, subB} {
		for i := 0; i < 10; i++ {
			msg, err := sub.Recv(2 * time.Second)
			if err != nil {
				t.Fatalf("recv %d: %v", i, err)
			}
			if len(msg) != 1 || msg[0] != byte(i) {
				t.Fatalf("out of order at %d: %v", i, msg)
			}
		}
	}
}

func TestTCPLateSubscriberMissesEarlierSends(t *testing.T) {
	testlog.Start(t)
	pub, err := bindTCPPub("127.0.0.1:0", DefaultPubConfig())
	if err != nil {
		t.Fatalf("bind pub: %v", err)
	}
	defer pub.Close()

	if err := pub.Send([]byte("before")); err != nil {
		t.Fatalf("send: %v", err)
	}

	sub, err := ConnectSub(pub.Addr())
	if err != nil {
		t.Fatalf("connect sub: %v", err)
	}
	defer sub.Close()
	waitForSubscribers(t, pub, 1)

	if err := pub.Send([]byte("after")); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg, err := sub.Recv(2 * time.Second)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(msg) != "after" {
		t.Fatalf("late subscriber saw %q", msg)
	}
}

func waitForSubscribers(t *testing.T, pub PubSocket, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for pub.SubscriberCount() < want {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers never attached: have %d, want %d", pub.SubscriberCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
