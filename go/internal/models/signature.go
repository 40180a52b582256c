package models

// TurnSignature is the derived identity of one particular turn. Two
// snapshots with equal signatures describe the same turn, which makes
// the signature usable as an idempotency key: an action attempted for a
// signature must not be attempted again while the signature holds.
//
// The struct is comparable so it can key maps directly.
type TurnSignature struct {
	Team       Team
	Turn       int
	ClueWord   string
	ClueNumber int
	StartedAt  int64 // unix seconds, 0 when the game record carries no start
}

// Zero reports whether the signature is the empty value.
func (s TurnSignature) Zero() bool {
	return s == TurnSignature{}
}

// SignatureOf derives the turn signature from a game snapshot. A nil or
// non-active game yields the zero signature.
func SignatureOf(g *Game) TurnSignature {
	if g == nil || !g.Active() {
		return TurnSignature{}
	}
	sig := TurnSignature{
		Team: g.TurnTeam,
		Turn: g.Turn,
	}
	if word, num, ok := g.Clue(); ok {
		sig.ClueWord = word
		sig.ClueNumber = num
	}
	if g.TurnStartedAt != nil {
		sig.StartedAt = g.TurnStartedAt.Unix()
	}
	return sig
}
