package game

import (
	"fmt"
	"strings"

	"github.com/coder/quartz"
)

// OddCardPolicy decides what an unpaired card in the deck is allowed to do.
type OddCardPolicy int

const (
	// OddCardDecorative cards can never be flipped.
	OddCardDecorative OddCardPolicy = iota
	// OddCardFlippable cards can be flipped but never match anything.
	OddCardFlippable
)

// String returns the config name of the policy.
func (p OddCardPolicy) String() string {
	if p == OddCardFlippable {
		return "flippable"
	}
	return "decorative"
}

// ParseOddCardPolicy maps a config value to a policy. Unknown values are decorative.
func ParseOddCardPolicy(s string) OddCardPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "flippable") {
		return OddCardFlippable
	}
	return OddCardDecorative
}

// Rules configure deck generation and scoring.
type Rules struct {
	PairIDs        []string
	OddCard        bool
	OddCardPolicy  OddCardPolicy
	PointsPerMatch int
	QualityShuffle bool
}

// DefaultRules is the classic five-pair deck, one point per match.
func DefaultRules() Rules {
	return Rules{
		PairIDs:        DefaultPairIDs(),
		PointsPerMatch: 1,
		QualityShuffle: true,
	}
}

// Outcome describes what a single step did.
type Outcome struct {
	Kind       ActionKind
	Applied    bool // false when a precondition failed and the state is unchanged
	NeedsCheck bool // two cards are face up and no check is in progress
	Matched    bool
	Mismatched bool
	GameOver   bool
	Winner     Winner
}

// Engine is the game state machine. It holds no game state of its own; all
// randomness and time come from the injected shuffler and clock.
type Engine struct {
	rules    Rules
	shuffler Shuffler
	clock    quartz.Clock
}

// NewEngine creates an engine. A nil clock uses the real clock; a nil shuffler
// leaves decks in the order they were generated.
func NewEngine(rules Rules, shuffler Shuffler, clock quartz.Clock) *Engine {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if rules.PointsPerMatch < 1 {
		rules.PointsPerMatch = 1
	}
	if len(rules.PairIDs) == 0 {
		rules.PairIDs = DefaultPairIDs()
	}
	rules.PairIDs = append([]string(nil), rules.PairIDs...)
	return &Engine{rules: rules, shuffler: shuffler, clock: clock}
}

// Rules returns a copy of the engine's rules.
func (e *Engine) Rules() Rules {
	r := e.rules
	r.PairIDs = append([]string(nil), e.rules.PairIDs...)
	return r
}

// WithRules returns an engine sharing the shuffler and clock but using new rules.
func (e *Engine) WithRules(rules Rules) *Engine {
	return NewEngine(rules, e.shuffler, e.clock)
}

// Transition applies an action and returns the resulting state.
func (e *Engine) Transition(s State, a Action) State {
	next, _ := e.Step(s, a)
	return next
}

// Step applies an action and reports what happened. When a precondition
// fails the input state is returned unchanged with Applied set to false.
func (e *Engine) Step(s State, a Action) (State, Outcome) {
	var (
		next State
		out  Outcome
	)
	switch a := a.(type) {
	case Deal:
		next, out = e.deal(s, a.Player1Name, a.Player2Name, a.Cards)
	case Flip:
		next, out = e.flip(s, a.CardID)
	case BeginCheck:
		next, out = e.beginCheck(s)
	case Resolve:
		next, out = e.resolve(s)
	case Reset:
		next, out = e.deal(s, s.Player1Name, s.Player2Name, nil)
	case Load:
		next, out = e.load(s, a)
	default:
		panic(fmt.Sprintf("game: unhandled action %T", a))
	}
	out.Kind = a.Kind()
	if !out.Applied {
		out.Winner = s.Winner
		return s, out
	}
	out.Winner = next.Winner
	return next, out
}
