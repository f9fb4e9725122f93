package game

import (
	"fmt"
	"strconv"
	"strings"
)

// Role is a player's role within a room. At most one player holds
// RoleClueMaker and at most one holds RoleGuesser at any time.
type Role string

const (
	RoleClueMaker Role = "clue_maker"
	RoleGuesser   Role = "guesser"
	RoleSpectator Role = "spectator"
)

// Principal reports whether the role is one of the two active round roles.
func (r Role) Principal() bool {
	return r == RoleClueMaker || r == RoleGuesser
}

// Phase is one of the five mutually-exclusive stages of a round.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseCountdown Phase = "countdown"
	PhasePicking   Phase = "picking"
	PhaseGuessing  Phase = "guessing"
	PhaseResult    Phase = "result"
)

const (
	// MaxGuesses is the guess budget per round.
	MaxGuesses = 5

	// CountdownStartSeconds is the countdown length entered when both
	// principal roles are filled in the lobby.
	CountdownStartSeconds = 5
)

// GridRows and GridCols bound the playable grid: rows "a".."p", cols 1..30.
const (
	GridRows = 16
	GridCols = 30
)

// pointsByGuess maps the winning guess number to points awarded.
var pointsByGuess = map[int]int{1: 10, 2: 8, 3: 6, 4: 4, 5: 2}

// PointsForGuess returns the points for a win on guess n, or 0 for a loss
// or out-of-range n.
func PointsForGuess(n int) int {
	return pointsByGuess[n]
}

// Player is one participant in the room roster.
type Player struct {
	Nickname string `json:"nickname"`
	Role     Role   `json:"role"`
}

// Cell identifies one grid cell.
type Cell struct {
	Row string `json:"row"`
	Col int    `json:"col"`
}

// Valid reports whether the cell lies on the grid.
func (c Cell) Valid() bool {
	if len(c.Row) != 1 {
		return false
	}
	r := c.Row[0]
	return r >= 'a' && r < 'a'+GridRows && c.Col >= 1 && c.Col <= GridCols
}

// String renders the cell in the compact "d12" form used by score records.
func (c Cell) String() string {
	return fmt.Sprintf("%s%d", c.Row, c.Col)
}

// ParseCell parses the compact "d12" form.
func ParseCell(s string) (Cell, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) < 2 {
		return Cell{}, fmt.Errorf("invalid cell %q", s)
	}
	col, err := strconv.Atoi(s[1:])
	if err != nil {
		return Cell{}, fmt.Errorf("invalid cell %q: %w", s, err)
	}
	c := Cell{Row: s[:1], Col: col}
	if !c.Valid() {
		return Cell{}, fmt.Errorf("cell %q out of range", s)
	}
	return c, nil
}

// Guess is one attempt at the target cell. GuessNumber is the ordinal
// attempt that produced it, starting at 1.
type Guess struct {
	Row         string `json:"row"`
	Col         int    `json:"col"`
	GuessNumber int    `json:"guessNumber"`
}

// Cell returns the grid cell this guess names.
func (g Guess) Cell() Cell {
	return Cell{Row: g.Row, Col: g.Col}
}

// RoundResult is produced exactly once per completed round by the
// clue maker's client.
type RoundResult struct {
	TargetCell Cell    `json:"targetCell"`
	Guesses    []Guess `json:"guesses"`
	Points     int     `json:"points"`
	ClueMaker  string  `json:"clueMaker"`
	Guesser    string  `json:"guesser"`
	Won        bool    `json:"won"`
}

// State is the single synchronized aggregate every participant mirrors.
// The clue maker's chosen target cell is deliberately absent: it lives only
// in the clue maker's client until the round concludes.
type State struct {
	Phase              Phase        `json:"phase"`
	Players            []Player     `json:"players"`
	Guesses            []Guess      `json:"guesses"`
	CurrentGuessNumber int          `json:"currentGuessNumber"`
	CountdownSeconds   *int         `json:"countdownSeconds"`
	LastRoundResult    *RoundResult `json:"lastRoundResult"`
}

// NewState returns the empty lobby state a client starts from when it
// subscribes to a room.
func NewState() State {
	return State{
		Phase:   PhaseLobby,
		Players: []Player{},
		Guesses: []Guess{},
	}
}

// Clone returns a deep copy. The reducer operates on clones so that callers
// holding an old State never observe mutation.
func (s State) Clone() State {
	next := s
	next.Players = append([]Player(nil), s.Players...)
	next.Guesses = append([]Guess(nil), s.Guesses...)
	if s.CountdownSeconds != nil {
		v := *s.CountdownSeconds
		next.CountdownSeconds = &v
	}
	if s.LastRoundResult != nil {
		r := *s.LastRoundResult
		r.Guesses = append([]Guess(nil), s.LastRoundResult.Guesses...)
		next.LastRoundResult = &r
	}
	return next
}

// PlayerRole returns the role held by nickname, defaulting to spectator for
// unknown nicknames.
func (s State) PlayerRole(nickname string) Role {
	for _, p := range s.Players {
		if p.Nickname == nickname {
			return p.Role
		}
	}
	return RoleSpectator
}

// HasPlayer reports whether nickname is in the roster.
func (s State) HasPlayer(nickname string) bool {
	for _, p := range s.Players {
		if p.Nickname == nickname {
			return true
		}
	}
	return false
}

// NicknameWithRole returns the nickname currently holding role, if any.
func (s State) NicknameWithRole(role Role) (string, bool) {
	for _, p := range s.Players {
		if p.Role == role {
			return p.Nickname, true
		}
	}
	return "", false
}

// LastGuess returns the most recent guess, if any.
func (s State) LastGuess() (Guess, bool) {
	if len(s.Guesses) == 0 {
		return Guess{}, false
	}
	return s.Guesses[len(s.Guesses)-1], true
}
