package tournament

import (
	"time"

	"github.com/arenaforge/bracketd/internal/bracket"
)

// MatchStatus is the state of a single match in the ledger.
type MatchStatus string

const (
	MatchPending   MatchStatus = "pending"
	MatchReported  MatchStatus = "reported"
	MatchDisputed  MatchStatus = "disputed"
	MatchConfirmed MatchStatus = "confirmed"
)

// Match is one pairing in the bracket. A bye slot is the empty string; a
// match with a bye auto-confirms and never enters the pending state.
type Match struct {
	ID         int
	Round      int
	Players    [2]string
	Winner     string
	ReportedBy string
	ReportedAt time.Time
	Status     MatchStatus
}

func (m *Match) has(player string) bool {
	return player != bracket.Bye && (m.Players[0] == player || m.Players[1] == player)
}

// loser returns the participant that did not win, or the bye marker when the
// match had only one real player.
func (m *Match) loser() string {
	if m.Players[0] == m.Winner {
		return m.Players[1]
	}
	return m.Players[0]
}

// isBye reports whether either slot is empty.
func (m *Match) isBye() bool {
	return m.Players[0] == bracket.Bye || m.Players[1] == bracket.Bye
}

// byeWinner returns the advancing side of a bye pairing. A double bye
// advances a bye into the next round.
func (m *Match) byeWinner() string {
	if m.Players[0] != bracket.Bye {
		return m.Players[0]
	}
	return m.Players[1]
}
