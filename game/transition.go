package game

// isoMillis matches the history date format clients expect: UTC with milliseconds.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

func noop() (State, Outcome) {
	return State{}, Outcome{}
}

func (e *Engine) deal(s State, player1Name, player2Name string, cards []Card) (State, Outcome) {
	if cards == nil {
		cards = NewDeck(e.rules.PairIDs, e.rules.OddCard)
	} else if err := ValidateDeck(cards, e.rules.OddCard); err != nil {
		return noop()
	}
	next := State{
		Cards:         ShuffleDeck(cards, e.shuffler, e.rules.QualityShuffle),
		CurrentPlayer: Player1,
		Player1Name:   player1Name,
		Player2Name:   player2Name,
		FlippedCards:  []string{},
		MatchedPairs:  []string{},
		Winner:        Undecided,
		GameHistory:   append([]HistoryEntry{}, s.GameHistory...),
	}
	return next, Outcome{Applied: true}
}

func (e *Engine) flip(s State, cardID string) (State, Outcome) {
	if s.GameOver || s.IsChecking || len(s.FlippedCards) >= 2 || s.IsCardFlipped(cardID) {
		return noop()
	}
	card, ok := s.CardByID(cardID)
	if !ok || s.IsMatched(card.PairID) {
		return noop()
	}
	if e.rules.OddCardPolicy == OddCardDecorative && pairSize(s.Cards, card.PairID) < 2 {
		return noop()
	}
	next := s.Clone()
	next.FlippedCards = append(next.FlippedCards, cardID)
	return next, Outcome{Applied: true, NeedsCheck: len(next.FlippedCards) == 2}
}

func (e *Engine) beginCheck(s State) (State, Outcome) {
	if s.GameOver || s.IsChecking || len(s.FlippedCards) != 2 {
		return noop()
	}
	next := s.Clone()
	next.IsChecking = true
	return next, Outcome{Applied: true}
}

func (e *Engine) resolve(s State) (State, Outcome) {
	if !s.IsChecking || len(s.FlippedCards) != 2 {
		return noop()
	}
	first, ok1 := s.CardByID(s.FlippedCards[0])
	second, ok2 := s.CardByID(s.FlippedCards[1])
	if !ok1 || !ok2 {
		return noop()
	}

	next := s.Clone()
	next.FlippedCards = next.FlippedCards[:0]
	next.IsChecking = false

	if first.PairID != second.PairID {
		next.CurrentPlayer = s.CurrentPlayer.Other()
		next.Turns++
		return next, Outcome{Applied: true, Mismatched: true}
	}

	// Match: the current player keeps the turn.
	next.MatchedPairs = append(next.MatchedPairs, first.PairID)
	if s.CurrentPlayer == Player2 {
		next.Player2Score += e.rules.PointsPerMatch
	} else {
		next.Player1Score += e.rules.PointsPerMatch
	}
	out := Outcome{Applied: true, Matched: true}

	if next.allPairsMatched() {
		next.GameOver = true
		next.Winner = DecideWinner(next.Player1Score, next.Player2Score)
		next.GameHistory = append(next.GameHistory, HistoryEntry{
			Date:         e.clock.Now().UTC().Format(isoMillis),
			Player1:      next.Player1Name,
			Player2:      next.Player2Name,
			Player1Score: next.Player1Score,
			Player2Score: next.Player2Score,
			Winner:       next.Winner,
		})
		out.GameOver = true
	}
	return next, out
}

func (e *Engine) load(s State, a Load) (State, Outcome) {
	if a.Snapshot.GameOver || a.Snapshot.Validate() != nil {
		return noop()
	}
	next := a.Snapshot.Clone()
	next.Player1Name = a.Player1Name
	next.Player2Name = a.Player2Name
	return next, Outcome{Applied: true, NeedsCheck: len(next.FlippedCards) == 2 && !next.IsChecking}
}

func pairSize(cards []Card, pairID string) int {
	n := 0
	for _, c := range cards {
		if c.PairID == pairID {
			n++
		}
	}
	return n
}
