package uno

import "github.com/google/uuid"

// Transfer is one credit owed to a player when a session finishes.
type Transfer struct {
	Player PlayerID  `json:"player"`
	Amount int64     `json:"amount"`
	Token  uuid.UUID `json:"token"`
	Paid   bool      `json:"paid"`
}

// Settlement is the payout plan of a finished session. Token is derived from the session id, and
// each transfer token from Token and the recipient, so retries always present the same keys.
type Settlement struct {
	Token     uuid.UUID  `json:"token"`
	Transfers []Transfer `json:"transfers"`
}

func (s *Settlement) add(p PlayerID, amount int64) {
	s.Transfers = append(s.Transfers, Transfer{
		Player: p,
		Amount: amount,
		Token:  uuid.NewSHA1(s.Token, []byte(p)),
	})
}

// Pending returns the transfers not yet accepted by the ledger.
func (s *Settlement) Pending() []Transfer {
	if s == nil {
		return nil
	}
	var out []Transfer
	for _, t := range s.Transfers {
		if !t.Paid {
			out = append(out, t)
		}
	}
	return out
}

// MarkPaid flags the transfer with token as paid. Returns false for an unknown token.
func (s *Settlement) MarkPaid(token uuid.UUID) bool {
	for i := range s.Transfers {
		if s.Transfers[i].Token == token {
			s.Transfers[i].Paid = true
			return true
		}
	}
	return false
}

// Complete reports whether every transfer has been paid.
func (s *Settlement) Complete() bool {
	return s != nil && len(s.Pending()) == 0
}

// Paid sums the amounts already credited.
func (s *Settlement) Paid() int64 {
	if s == nil {
		return 0
	}
	var total int64
	for _, t := range s.Transfers {
		if t.Paid {
			total += t.Amount
		}
	}
	return total
}
