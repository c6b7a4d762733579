package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/joe-el-khoury/fbzmq/internal/testutil/testlog"
	"github.com/joe-el-khoury/fbzmq/internal/wire"
)

func TestClientSubscribeDeliversInOrder(t *testing.T) {
	testlog.Start(t)
	_, client := startService(t, "client-sub")

	pubs := make(chan wire.Publication, 32)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	subDone := make(chan error, 1)
	go func() {
		subDone <- client.Subscribe(ctx, func(pub wire.Publication) {
			pubs <- pub
		})
	}()

	// Subscribe dials inside the goroutine and earlier publications are
	// never replayed, so nudge until the subscription is live.
	warmupSeen := false
	for i := 0; i < 100 && !warmupSeen; i++ {
		if err := client.LogEvent("warmup"); err != nil {
			t.Fatalf("warmup log: %v", err)
		}
		select {
		case <-pubs:
			warmupSeen = true
		case <-time.After(20 * time.Millisecond):
		}
	}
	if !warmupSeen {
		t.Fatal("subscription never became live")
	}
	drainWarmups(pubs)

	if err := client.SetCounters(map[string]int64{"a": 1}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := client.LogEvent("cat", "s1"); err != nil {
		t.Fatalf("log: %v", err)
	}

	first := waitPub(t, pubs)
	for first.Type == wire.EventLogPubType && first.EventLog.Category == "warmup" {
		first = waitPub(t, pubs)
	}
	if first.Type != wire.CounterPubType {
		t.Fatalf("expected counter pub first, got %s", first.Type)
	}
	second := waitPub(t, pubs)
	if second.Type != wire.EventLogPubType || second.EventLog.Category != "cat" {
		t.Fatalf("expected event log pub second, got %+v", second)
	}

	cancel()
	select {
	case err := <-subDone:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected subscribe exit: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("subscribe did not exit after cancel")
	}
}

func TestClientExchangeReportsRefusal(t *testing.T) {
	testlog.Start(t)
	_, client := startService(t, "client-refusal")

	_, err := client.exchange(wire.Request{Cmd: wire.Command(404)})
	if !errors.Is(err, ErrRequestRefused) {
		t.Fatalf("expected ErrRequestRefused, got %v", err)
	}
}

func waitPub(t *testing.T, pubs chan wire.Publication) wire.Publication {
	t.Helper()
	select {
	case pub := <-pubs:
		return pub
	case <-time.After(2 * time.Second):
		t.Fatal("publication never arrived")
		return wire.Publication{}
	}
}

func drainWarmups(pubs chan wire.Publication) {
	for {
		select {
		case <-pubs:
		default:
			return
		}
	}
}
