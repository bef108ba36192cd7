package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"boardkit/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(AllBoards, 1)

	ev := core.NewBoardCreated("weekly", core.Descending)
	h.Broadcast(context.Background(), ev)

	received := <-ch
	if received.Board != "weekly" || received.Type != core.EventBoardCreated {
		t.Fatalf("unexpected event: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
	if n := h.Subscribers(); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestHubFiltersByBoard(t *testing.T) {
	h := NewHub()
	_, weekly := h.Subscribe("Weekly", 4)
	_, all := h.Subscribe(AllBoards, 4)

	h.Broadcast(context.Background(), core.NewBoardCreated("daily", core.Ascending))
	h.Broadcast(context.Background(), core.NewBoardCreated("weekly", core.Ascending))

	if got := len(weekly); got != 1 {
		t.Fatalf("board subscriber: expected 1 event, got %d", got)
	}
	if ev := <-weekly; ev.Board != "weekly" {
		t.Fatalf("unexpected board: %s", ev.Board)
	}
	if got := len(all); got != 2 {
		t.Fatalf("wildcard subscriber: expected 2 events, got %d", got)
	}
}

func TestHubDropsWhenFull(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(AllBoards, 1)
	for i := 0; i < 3; i++ {
		h.Broadcast(context.Background(), core.NewBoardCreated("b", core.Ascending))
	}
	if got := len(ch); got != 1 {
		t.Fatalf("expected buffered 1 event, got %d", got)
	}
}

func TestHubClose(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe(AllBoards, 1)
	h.Close()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed by Close")
	}
	_, late := h.Subscribe(AllBoards, 1)
	if _, ok := <-late; ok {
		t.Fatal("expected subscription after Close to be closed")
	}
}

func TestMarshalJSON(t *testing.T) {
	sub := core.Submission{Board: "b", Player: "alice", Standing: core.Standing{Score: 7, Rank: 0}, Improved: true}
	b := MarshalJSON(core.NewScoreSubmitted(sub, 7))
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out["player"] != "alice" || out["type"] != string(core.EventScoreImproved) {
		t.Fatalf("unexpected payload: %s", b)
	}
	if _, ok := out["rank"]; !ok {
		t.Fatalf("rank 0 must be present: %s", b)
	}
	if _, ok := out["token"]; ok {
		t.Fatalf("events must not carry tokens: %s", b)
	}
}
