package stream

import (
	"testing"

	"propmarket/internal/models"
)

func TestHubFanout(t *testing.T) {
	hub := NewHub(nil)
	ch1, cancel1 := hub.Subscribe(4)
	ch2, cancel2 := hub.Subscribe(4)
	defer cancel1()
	defer cancel2()

	hub.Publish(models.LedgerEvent{Seq: 1, Kind: models.EventSharesPurchased})

	for i, ch := range []<-chan models.LedgerEvent{ch1, ch2} {
		select {
		case got := <-ch:
			if got.Seq != 1 || got.Kind != models.EventSharesPurchased {
				t.Fatalf("sub %d got seq=%d kind=%s", i, got.Seq, got.Kind)
			}
		default:
			t.Fatalf("sub %d received nothing", i)
		}
	}
}

func TestHubSlowSubscriberDrops(t *testing.T) {
	hub := NewHub(nil)
	_, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Publish(models.LedgerEvent{Seq: 1})
	hub.Publish(models.LedgerEvent{Seq: 2})

	if got := hub.Dropped(); got != 1 {
		t.Fatalf("dropped=%d want 1", got)
	}
}

func TestHubCancelRemovesSubscriber(t *testing.T) {
	hub := NewHub(nil)
	ch, cancel := hub.Subscribe(1)
	if hub.Subscribers() != 1 {
		t.Fatalf("subscribers=%d want 1", hub.Subscribers())
	}
	cancel()
	if hub.Subscribers() != 0 {
		t.Fatalf("subscribers=%d want 0", hub.Subscribers())
	}
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed")
	}
	// Publishing after cancel must not panic.
	hub.Publish(models.LedgerEvent{Seq: 3})
	cancel()
}

func TestParseKinds(t *testing.T) {
	if got := parseKinds(""); got != nil {
		t.Fatalf("empty=%v want nil", got)
	}
	got := parseKinds(" shares_purchased, listing_sold ,")
	if len(got) != 2 || !got["shares_purchased"] || !got["listing_sold"] {
		t.Fatalf("got=%v", got)
	}
}
