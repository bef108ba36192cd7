package core

import "time"

// EventType enumerates domain events.
type EventType string

const (
	EventBoardCreated  EventType = "board_created"
	EventScoreImproved EventType = "score_improved"
	EventScoreIgnored  EventType = "score_ignored"
)

// Event represents an immutable domain event. Events never carry board tokens.
type Event struct {
	Type      EventType    `json:"type"`
	Time      time.Time    `json:"time"`
	Board     string       `json:"board"`
	Order     SortingOrder `json:"order,omitempty"`
	Player    string       `json:"player,omitempty"`
	Submitted float64      `json:"submitted"`
	Score     float64      `json:"score"`
	Rank      int64        `json:"rank"`
}

func NewBoardCreated(board string, order SortingOrder) Event {
	return Event{Type: EventBoardCreated, Time: time.Now().UTC(), Board: board, Order: order}
}

// NewScoreSubmitted builds the event for a submission, improved or not.
func NewScoreSubmitted(sub Submission, submitted float64) Event {
	typ := EventScoreIgnored
	if sub.Improved {
		typ = EventScoreImproved
	}
	return Event{
		Type:      typ,
		Time:      time.Now().UTC(),
		Board:     sub.Board,
		Player:    sub.Player,
		Submitted: submitted,
		Score:     sub.Score,
		Rank:      sub.Rank,
	}
}
