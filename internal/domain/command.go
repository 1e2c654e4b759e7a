package domain

import "time"

// AccountID identifies an authenticated caller.
type AccountID string

// CommandStatus represents the lifecycle state of a command.
type CommandStatus string

const (
	CommandStatusCreated                 CommandStatus = "created"
	CommandStatusCertificationInProgress CommandStatus = "certification_in_progress"
	CommandStatusCancelled               CommandStatus = "cancelled"
)

// Side is the order side of a command.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// CertificationKind selects which quality sequence a sign-off is
// appended to.
type CertificationKind string

const (
	CertificationCertificate CertificationKind = "certificate"
	CertificationStage       CertificationKind = "stage"
)

// Quality holds the optional multi-party certification of a command.
// Both sequences are append-only.
type Quality struct {
	Certificate []AccountID
	Stage       []AccountID
}

// Clone returns a deep copy of q. Present slices are never nil in the
// copy, so an empty quality stays distinguishable from no quality.
func (q *Quality) Clone() *Quality {
	if q == nil {
		return nil
	}
	c := &Quality{
		Certificate: make([]AccountID, len(q.Certificate)),
		Stage:       make([]AccountID, len(q.Stage)),
	}
	copy(c.Certificate, q.Certificate)
	copy(c.Stage, q.Stage)
	return c
}

// Command is a buy or sell order recorded in the ledger.
type Command struct {
	CommandID       string
	NameProduct     string
	IsSell          bool
	AmountProduct   U128
	PricePerProduct U128
	Quality         *Quality // nil when no certification is needed
	OwnerID         AccountID
	Status          CommandStatus
	Deposit         U128 // value held in escrow for this command
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Side returns the order side derived from IsSell.
func (c *Command) Side() Side {
	if c.IsSell {
		return SideSell
	}
	return SideBuy
}

// Clone returns a deep copy of c.
func (c *Command) Clone() *Command {
	cp := *c
	cp.Quality = c.Quality.Clone()
	return &cp
}

// Receipt records value returned to an account: a refund of a rejected
// call's deposit, or the release of an escrowed deposit.
type Receipt struct {
	ReceiptID string
	AccountID AccountID
	CommandID string
	Amount    U128
	Reason    string
	IssuedAt  time.Time
}
