// Package bracket lays out single-elimination brackets. Seeding is a pure
// function of the seed material and the registrant list, so every node that
// replays the same events derives the same bracket.
package bracket

import (
	"encoding/binary"
	"errors"

	"lukechampine.com/blake3"
)

var (
	ErrSizeNotPowerOfTwo = errors.New("bracket size must be a power of two of at least 2")
	ErrTooFewPlayers     = errors.New("bracket needs at least 2 players")
	ErrTooManyPlayers    = errors.New("more players than bracket slots")
	ErrDuplicatePlayer   = errors.New("duplicate player in bracket")
)

// Bye marks an empty slot. A player paired against a bye advances without
// playing.
const Bye = ""

// Seed shuffles players with the given 32-byte seed and lays them into a
// bracket of the given size. Slots beyond the last player are byes.
func Seed(seed [32]byte, players []string, size int) ([]string, error) {
	if err := validate(players, size); err != nil {
		return nil, err
	}

	shuffled := make([]string, len(players))
	copy(shuffled, players)

	// Fisher-Yates driven by a counter-extended hash of the seed. Each
	// 32-byte block yields four uint64 words.
	var (
		block   [32]byte
		counter uint64
		used    = 4
	)
	next := func() uint64 {
		if used == 4 {
			var material [40]byte
			copy(material[:32], seed[:])
			binary.BigEndian.PutUint64(material[32:], counter)
			counter++
			block = blake3.Sum256(material[:])
			used = 0
		}
		w := binary.BigEndian.Uint64(block[used*8:])
		used++
		return w
	}

	for i := len(shuffled) - 1; i > 0; i-- {
		j := int(next() % uint64(i+1))
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	return layout(shuffled, size), nil
}

// Deterministic lays players into the bracket in registration order, with no
// shuffle. Used when the organizer opts out of seeded ordering.
func Deterministic(players []string, size int) ([]string, error) {
	if err := validate(players, size); err != nil {
		return nil, err
	}
	return layout(players, size), nil
}

// Pairs returns the first-round pairings for a slot layout: slot 2k meets
// slot 2k+1.
func Pairs(slots []string) [][2]string {
	pairs := make([][2]string, 0, len(slots)/2)
	for i := 0; i+1 < len(slots); i += 2 {
		pairs = append(pairs, [2]string{slots[i], slots[i+1]})
	}
	return pairs
}

// Rounds returns the number of rounds a bracket of the given size plays.
func Rounds(size int) int {
	n := 0
	for size > 1 {
		size /= 2
		n++
	}
	return n
}

func validate(players []string, size int) error {
	if size < 2 || size&(size-1) != 0 {
		return ErrSizeNotPowerOfTwo
	}
	if len(players) < 2 {
		return ErrTooFewPlayers
	}
	if len(players) > size {
		return ErrTooManyPlayers
	}
	seen := make(map[string]struct{}, len(players))
	for _, p := range players {
		if _, dup := seen[p]; dup {
			return ErrDuplicatePlayer
		}
		seen[p] = struct{}{}
	}
	return nil
}

func layout(players []string, size int) []string {
	slots := make([]string, size)
	copy(slots, players)
	return slots
}
