package bus

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"dealbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestPublishSubscribe(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	b.Publish(domain.InboundMessage{Channel: "web", ChatID: "c1", Content: "any deals?"})

	select {
	case msg := <-b.Subscribe():
		if msg.Content != "any deals?" {
			t.Fatalf("unexpected content: %q", msg.Content)
		}
		if msg.Channel != "web" {
			t.Fatalf("unexpected channel: %q", msg.Channel)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for inbound message")
	}
}

func TestOutboundRouting(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	got := make(chan domain.OutboundMessage, 1)
	b.OnOutbound("websocket", func(msg domain.OutboundMessage) {
		got <- msg
	})

	b.SendOutbound(domain.OutboundMessage{Channel: "websocket", ChatID: "c1", Content: "reply"})

	select {
	case msg := <-got:
		if msg.Content != "reply" {
			t.Fatalf("unexpected content: %q", msg.Content)
		}
	case <-time.After(time.Second):
		t.Fatal("outbound handler not invoked")
	}
}

func TestOutboundNoHandler(t *testing.T) {
	b := New(10, testLogger())
	defer b.Close()

	// Should log and return, not panic.
	b.SendOutbound(domain.OutboundMessage{Channel: "unknown", Content: "x"})
}

func TestPublishAfterClose(t *testing.T) {
	b := New(10, testLogger())
	b.Close()

	// Should not panic on a closed bus.
	b.Publish(domain.InboundMessage{Channel: "web", Content: "late"})
}
