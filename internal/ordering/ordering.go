// Package ordering plans position changes for 0-based, contiguous ordered collections.
//
// Planners are pure: they take the current (id, position) pairs of one collection and
// return the [Move]s that keep positions unique and gap free. Callers apply the moves,
// usually inside one transaction while holding the collection's [Locker] key.
//
// Every planner validates its arguments before producing any move, so a rejected
// operation never leaves a half-applied plan behind.
package ordering

import (
	"fmt"
	"sort"

	"github.com/desertthunder/tunelink/internal/shared"
)

// Item is the ordering view of one collection member.
type Item struct {
	ID       string
	Position int
}

// Move changes the position of one existing item.
type Move struct {
	ID   string
	From int
	To   int
}

// Sorted returns a copy of items ordered by position.
func Sorted(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// Check reports whether positions are exactly 0..len(items)-1.
func Check(items []Item) error {
	seen := make([]bool, len(items))
	for _, it := range items {
		if it.Position < 0 || it.Position >= len(items) {
			return fmt.Errorf("%w: item %s at %d in collection of %d", shared.ErrInvalidPosition, it.ID, it.Position, len(items))
		}
		if seen[it.Position] {
			return fmt.Errorf("%w: duplicate position %d", shared.ErrInvalidPosition, it.Position)
		}
		seen[it.Position] = true
	}
	return nil
}

// Insert plans room for k new items starting at position at.
//
// A nil at appends. Every item at or after the insertion point shifts by +k, and the
// returned start is where the first new item goes; new items take start..start+k-1.
func Insert(items []Item, at *int, k int) (start int, moves []Move, err error) {
	if k <= 0 {
		return 0, nil, fmt.Errorf("%w: nothing to insert", shared.ErrInvalidInput)
	}

	n := len(items)
	start = n
	if at != nil {
		start = *at
	}
	if start < 0 || start > n {
		return 0, nil, fmt.Errorf("%w: insert at %d in collection of %d", shared.ErrInvalidPosition, start, n)
	}

	for _, it := range Sorted(items) {
		if it.Position >= start {
			moves = append(moves, Move{ID: it.ID, From: it.Position, To: it.Position + k})
		}
	}
	return start, moves, nil
}

// Remove plans the removal of id and the collapse of every later position by one.
func Remove(items []Item, id string) (removed Item, moves []Move, err error) {
	idx := indexOf(items, id)
	if idx < 0 {
		return Item{}, nil, fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
	}
	removed = items[idx]

	for _, it := range Sorted(items) {
		if it.Position > removed.Position {
			moves = append(moves, Move{ID: it.ID, From: it.Position, To: it.Position - 1})
		}
	}
	return removed, moves, nil
}

// MoveTo plans moving id to newPosition.
//
// Moving forward shifts the items in (old, new] back by one; moving backward shifts the
// items in [new, old) forward by one. Moving to the current position yields no moves.
func MoveTo(items []Item, id string, newPosition int) ([]Move, error) {
	idx := indexOf(items, id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
	}
	if newPosition < 0 || newPosition >= len(items) {
		return nil, fmt.Errorf("%w: move to %d in collection of %d", shared.ErrInvalidPosition, newPosition, len(items))
	}

	old := items[idx].Position
	if newPosition == old {
		return nil, nil
	}

	var moves []Move
	for _, it := range Sorted(items) {
		switch {
		case it.ID == id:
			moves = append(moves, Move{ID: it.ID, From: old, To: newPosition})
		case newPosition > old && it.Position > old && it.Position <= newPosition:
			moves = append(moves, Move{ID: it.ID, From: it.Position, To: it.Position - 1})
		case newPosition < old && it.Position >= newPosition && it.Position < old:
			moves = append(moves, Move{ID: it.ID, From: it.Position, To: it.Position + 1})
		}
	}
	return moves, nil
}

// MoveRange plans the range reorder [rangeStart, rangeStart+rangeLength) placed before
// the item currently at insertBefore.
func MoveRange(items []Item, rangeStart, rangeLength, insertBefore int) ([]Move, error) {
	sorted := Sorted(items)
	reordered, err := Reorder(sorted, rangeStart, rangeLength, insertBefore)
	if err != nil {
		return nil, err
	}

	var moves []Move
	for pos, it := range reordered {
		if it.Position != pos {
			moves = append(moves, Move{ID: it.ID, From: it.Position, To: pos})
		}
	}
	return moves, nil
}

// Reorder returns a copy of s with the range [rangeStart, rangeStart+rangeLength)
// removed and reinserted before the element originally at insertBefore.
//
// insertBefore is an index into s before removal and may equal len(s) to move the
// range to the end. When it points past the range it is shifted down by rangeLength
// before use; when it points inside the range the order is unchanged.
func Reorder[T any](s []T, rangeStart, rangeLength, insertBefore int) ([]T, error) {
	n := len(s)
	if rangeLength < 1 || rangeStart < 0 || rangeStart+rangeLength > n {
		return nil, fmt.Errorf("%w: range %d+%d in collection of %d", shared.ErrInvalidPosition, rangeStart, rangeLength, n)
	}
	if insertBefore < 0 || insertBefore > n {
		return nil, fmt.Errorf("%w: insert before %d in collection of %d", shared.ErrInvalidPosition, insertBefore, n)
	}

	out := make([]T, 0, n)
	if insertBefore > rangeStart && insertBefore <= rangeStart+rangeLength {
		return append(out, s...), nil
	}

	block := s[rangeStart : rangeStart+rangeLength]
	rest := make([]T, 0, n-rangeLength)
	rest = append(rest, s[:rangeStart]...)
	rest = append(rest, s[rangeStart+rangeLength:]...)

	target := insertBefore
	if target > rangeStart {
		target -= rangeLength
	}

	out = append(out, rest[:target]...)
	out = append(out, block...)
	out = append(out, rest[target:]...)
	return out, nil
}

// Apply returns a copy of items with moves applied, for in-memory snapshots.
func Apply(items []Item, moves []Move) []Item {
	to := make(map[string]int, len(moves))
	for _, m := range moves {
		to[m.ID] = m.To
	}

	out := make([]Item, len(items))
	for i, it := range items {
		if p, ok := to[it.ID]; ok {
			it.Position = p
		}
		out[i] = it
	}
	return Sorted(out)
}

func indexOf(items []Item, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
