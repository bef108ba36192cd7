package leaderboard

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// A skip list keyed by (score asc, player asc) to achieve O(log n) updates.

const maxLevel = 16
const pFactor = 0.25

type node struct {
	e    Entry
	next [maxLevel]*node
}

type SkipList struct {
	mu       sync.RWMutex
	head     *node
	lvl      int
	byPlayer map[string]*node
	rng      *rand.Rand
}

func NewSkipList() *SkipList {
	// Use crypto/rand to generate a secure seed for PCG
	var seed [16]byte
	if _, err := cryptorand.Read(seed[:]); err != nil {
		// level distribution only, a fixed seed is still correct
		seed = [16]byte{}
	}
	seed1 := binary.BigEndian.Uint64(seed[:8])
	seed2 := binary.BigEndian.Uint64(seed[8:])

	return &SkipList{
		head:     &node{},
		lvl:      1,
		byPlayer: map[string]*node{},
		rng:      rand.New(rand.NewPCG(seed1, seed2)),
	}
}

func (s *SkipList) randomLevel() int {
	lvl := 1
	for lvl < maxLevel && s.rng.Float64() < pFactor {
		lvl++
	}
	return lvl
}

func less(a, b Entry) bool {
	if a.Score == b.Score {
		return a.Player < b.Player
	}
	return a.Score < b.Score
}

// Update inserts player or moves it to a new score.
func (s *SkipList) Update(player string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byPlayer[player]; ok {
		s.removeLocked(player, old.e)
	}
	e := Entry{Player: player, Score: score}
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	lvl := s.randomLevel()
	if lvl > s.lvl {
		for i := s.lvl; i < lvl; i++ {
			update[i] = s.head
		}
		s.lvl = lvl
	}
	n := &node{e: e}
	for i := 0; i < lvl; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
	}
	s.byPlayer[player] = n
}

func (s *SkipList) removeLocked(player string, e Entry) {
	update := [maxLevel]*node{}
	cur := s.head
	for i := s.lvl - 1; i >= 0; i-- {
		for cur.next[i] != nil && less(cur.next[i].e, e) {
			cur = cur.next[i]
		}
		update[i] = cur
	}
	target := update[0].next[0]
	if target == nil || target.e.Player != player {
		return
	}
	for i := 0; i < s.lvl; i++ {
		if update[i].next[i] == target {
			update[i].next[i] = target.next[i]
		}
	}
	delete(s.byPlayer, player)
	for s.lvl > 1 && s.head.next[s.lvl-1] == nil {
		s.lvl--
	}
}

func (s *SkipList) Remove(player string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byPlayer[player]; ok {
		s.removeLocked(player, n.e)
	}
}

func (s *SkipList) Get(player string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.byPlayer[player]; ok {
		return n.e, true
	}
	return Entry{}, false
}

func (s *SkipList) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byPlayer)
}

// Rank walks the bottom level, O(n).
func (s *SkipList) Rank(player string, reverse bool) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.byPlayer[player]; !ok {
		return 0, false
	}
	pos := 0
	for cur := s.head.next[0]; cur != nil; cur = cur.next[0] {
		if cur.e.Player == player {
			break
		}
		pos++
	}
	if reverse {
		return len(s.byPlayer) - 1 - pos, true
	}
	return pos, true
}

func (s *SkipList) Range(offset, n int, reverse bool) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := len(s.byPlayer)
	if n <= 0 || offset < 0 || offset >= total {
		return nil
	}
	if offset+n > total {
		n = total - offset
	}
	// translate a reverse window into its ascending counterpart
	start := offset
	if reverse {
		start = total - offset - n
	}
	out := make([]Entry, 0, n)
	cur := s.head.next[0]
	for i := 0; i < start; i++ {
		cur = cur.next[0]
	}
	for ; cur != nil && len(out) < n; cur = cur.next[0] {
		out = append(out, cur.e)
	}
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out
}

var _ Set = (*SkipList)(nil)
