// Package leaderboard provides an in-process ordered set of player scores with
// the same ordering rules as a Redis sorted set.
package leaderboard

// Entry represents a score entry.
type Entry struct {
	Player string
	Score  float64
}

// Set abstracts ordered score set operations. Entries are kept by ascending
// score, ties broken by ascending player name.
type Set interface {
	Update(player string, score float64)
	Remove(player string)
	Get(player string) (Entry, bool)
	// Rank returns the zero-based position of player; reverse counts from the top.
	Rank(player string, reverse bool) (int, bool)
	// Range returns up to n entries starting at offset.
	Range(offset, n int, reverse bool) []Entry
	Len() int
}
