package session

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"testing"

	"talosync.gg/internal/protocol"
	syncer "talosync.gg/internal/sync"
)

func newTestSession() *Session {
	return New(Config{
		Address:   "localhost:38281",
		SlotName:  "Player1",
		DeathLink: true,
	}, log.New(io.Discard, "", 0))
}

func deliver(t *testing.T, s *Session, msg any) {
	t.Helper()
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s.handleMessage(nil, b)
}

func TestConnectedBecomesEvent(t *testing.T) {
	s := newTestSession()
	deliver(t, s, protocol.ConnectedMsg{
		Type:             protocol.TypeConnected,
		Slot:             3,
		Team:             1,
		CheckedLocations: []int64{0x540000, 0x540001},
	})

	if !s.Connected() {
		t.Fatalf("session not marked connected")
	}
	evs := s.Poll()
	if len(evs) != 1 || evs[0].Kind != syncer.EventConnected {
		t.Fatalf("events = %+v, want one EventConnected", evs)
	}
	if len(evs[0].CheckedLocations) != 2 {
		t.Fatalf("checked locations = %v", evs[0].CheckedLocations)
	}
	if s.Poll() != nil {
		t.Fatalf("second poll not empty")
	}
}

func TestReceivedItemsIndexZeroResetsFirst(t *testing.T) {
	s := newTestSession()
	deliver(t, s, protocol.ReceivedItemsMsg{
		Type:  protocol.TypeReceivedItems,
		Index: 0,
		Items: []protocol.NetworkItem{{Item: 0x540000}, {Item: 0x540001}},
	})

	evs := s.Poll()
	if len(evs) != 3 {
		t.Fatalf("events = %+v, want reset plus two items", evs)
	}
	if evs[0].Kind != syncer.EventItemsReset {
		t.Fatalf("first event = %v, want EventItemsReset", evs[0].Kind)
	}
	if evs[1].ItemID != 0x540000 || evs[2].ItemID != 0x540001 {
		t.Fatalf("item ids = %d, %d", evs[1].ItemID, evs[2].ItemID)
	}
}

func TestReceivedItemsMidStreamNoReset(t *testing.T) {
	s := newTestSession()
	deliver(t, s, protocol.ReceivedItemsMsg{
		Type:  protocol.TypeReceivedItems,
		Index: 7,
		Items: []protocol.NetworkItem{{Item: 0x540002}},
	})

	evs := s.Poll()
	if len(evs) != 1 || evs[0].Kind != syncer.EventItemReceived {
		t.Fatalf("events = %+v, want one item event", evs)
	}
}

func TestDeathLinkBounceEnqueued(t *testing.T) {
	s := newTestSession()
	deliver(t, s, protocol.BounceMsg{
		Type: protocol.TypeBounced,
		Tags: []string{protocol.TagDeathLink},
		Data: protocol.BounceData{Source: "OtherPlayer", Cause: "fell"},
	})

	evs := s.Poll()
	if len(evs) != 1 || evs[0].Kind != syncer.EventDeathLinkReceived {
		t.Fatalf("events = %+v, want one death link event", evs)
	}
	if evs[0].Source != "OtherPlayer" || evs[0].Cause != "fell" {
		t.Fatalf("source=%q cause=%q", evs[0].Source, evs[0].Cause)
	}
}

func TestOwnDeathLinkEchoIgnored(t *testing.T) {
	s := newTestSession()
	deliver(t, s, protocol.BounceMsg{
		Type: protocol.TypeBounced,
		Tags: []string{protocol.TagDeathLink},
		Data: protocol.BounceData{Source: "Player1", Cause: "fell"},
	})

	if evs := s.Poll(); len(evs) != 0 {
		t.Fatalf("own echo produced events: %+v", evs)
	}
}

func TestUntaggedBounceIgnored(t *testing.T) {
	s := newTestSession()
	deliver(t, s, protocol.BounceMsg{
		Type: protocol.TypeBounced,
		Tags: []string{"Chat"},
		Data: protocol.BounceData{Source: "OtherPlayer"},
	})

	if evs := s.Poll(); len(evs) != 0 {
		t.Fatalf("untagged bounce produced events: %+v", evs)
	}
}

func TestMalformedMessageSkipped(t *testing.T) {
	s := newTestSession()
	s.handleMessage(nil, []byte(`{"type": "RECEIVED_ITEMS", "items": "nope"}`))
	s.handleMessage(nil, []byte(`not json at all`))

	if evs := s.Poll(); len(evs) != 0 {
		t.Fatalf("malformed input produced events: %+v", evs)
	}
}

func TestInboundQueueBounded(t *testing.T) {
	s := newTestSession()
	for i := 0; i < maxQueuedEvents+50; i++ {
		deliver(t, s, protocol.ReceivedItemsMsg{
			Type:  protocol.TypeReceivedItems,
			Index: i + 1,
			Items: []protocol.NetworkItem{{Item: int64(0x540000 + i)}},
		})
	}

	if evs := s.Poll(); len(evs) != maxQueuedEvents {
		t.Fatalf("queue length = %d, want cap %d", len(evs), maxQueuedEvents)
	}
}

func TestSendWithoutConnectionFails(t *testing.T) {
	s := newTestSession()
	if err := s.SendLocationCheck(0x540000); err == nil {
		t.Fatalf("send on closed session succeeded")
	}
	if err := s.SendDeathLink(fmt.Sprintf("%s lost their way.", "Player1")); err == nil {
		t.Fatalf("death link on closed session succeeded")
	}
}
