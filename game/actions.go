package game

// ActionKind enumerates the inputs the state machine accepts.
type ActionKind int

const (
	KindDeal ActionKind = iota
	KindFlip
	KindBeginCheck
	KindResolve
	KindReset
	KindLoad
)

// String returns the wire name of the kind.
func (k ActionKind) String() string {
	switch k {
	case KindDeal:
		return "DEAL"
	case KindFlip:
		return "FLIP"
	case KindBeginCheck:
		return "BEGIN_CHECK"
	case KindResolve:
		return "RESOLVE"
	case KindReset:
		return "RESET"
	case KindLoad:
		return "LOAD"
	default:
		return "UNKNOWN"
	}
}

// AllActionKinds lists every kind the engine must handle.
func AllActionKinds() []ActionKind {
	return []ActionKind{KindDeal, KindFlip, KindBeginCheck, KindResolve, KindReset, KindLoad}
}

// Action is a closed set: only the types in this file implement it.
type Action interface {
	Kind() ActionKind
	isAction()
}

// Deal starts a fresh session. Cards may be nil, in which case the engine
// generates a deck from its rules.
type Deal struct {
	Player1Name string
	Player2Name string
	Cards       []Card
}

// Flip turns one card face up.
type Flip struct {
	CardID string
}

// BeginCheck marks the window in which two face-up cards are held before resolution.
type BeginCheck struct{}

// Resolve compares the two face-up cards and applies match or mismatch.
type Resolve struct{}

// Reset deals again with the current player names.
type Reset struct{}

// Load replaces the state with a persisted snapshot. The names given here
// always win over the names stored in the snapshot.
type Load struct {
	Snapshot    State
	Player1Name string
	Player2Name string
}

func (Deal) Kind() ActionKind       { return KindDeal }
func (Flip) Kind() ActionKind       { return KindFlip }
func (BeginCheck) Kind() ActionKind { return KindBeginCheck }
func (Resolve) Kind() ActionKind    { return KindResolve }
func (Reset) Kind() ActionKind      { return KindReset }
func (Load) Kind() ActionKind       { return KindLoad }

func (Deal) isAction()       {}
func (Flip) isAction()       {}
func (BeginCheck) isAction() {}
func (Resolve) isAction()    {}
func (Reset) isAction()      {}
func (Load) isAction()       {}
