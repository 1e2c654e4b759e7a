// Package ledger implements the command ledger: keyed insertion of buy
// and sell commands backed by an escrowed deposit, public reads, and
// optional multi-party quality certification.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/efreitasn/commandledger/internal/domain"
	"github.com/efreitasn/commandledger/internal/escrow"
	"github.com/efreitasn/commandledger/internal/store"
)

// Repository persists commands and the ledger owner.
type Repository interface {
	Create(ctx context.Context, c *domain.Command) error
	Get(ctx context.Context, id string) (*domain.Command, error)
	Update(ctx context.Context, c *domain.Command) error
	List(ctx context.Context, f store.ListFilter) ([]*domain.Command, int, error)
	Owner(ctx context.Context) (domain.AccountID, bool, error)
	SetOwner(ctx context.Context, owner domain.AccountID) error
}

// Authorizer gates mutating operations by caller identity.
type Authorizer interface {
	AuthorizeCreate(caller domain.AccountID, side domain.Side) error
	AuthorizeCertify(caller, owner, ledgerOwner domain.AccountID) error
	AuthorizeCancel(caller, owner, ledgerOwner domain.AccountID) error
}

// Notifier is told about committed state changes. Implementations must
// not block.
type Notifier interface {
	CommandCreated(c *domain.Command)
	CommandCertified(c *domain.Command, kind domain.CertificationKind, signer domain.AccountID)
	CommandCancelled(c *domain.Command)
}

// ReceiptLister lists receipts issued to an account.
type ReceiptLister interface {
	ListByAccount(account domain.AccountID) []*domain.Receipt
}

// Call is the context the transport delivers with every request: the
// authenticated caller and the value attached to the call.
type Call struct {
	Caller  domain.AccountID
	Deposit domain.U128
}

// AddResult is the outcome of add_command. On failure CommandID is
// empty and Refund returns the attached deposit to the caller.
type AddResult struct {
	CommandID string
	Quote     escrow.Quote
	Refund    *domain.Receipt
}

// Ledger is the command store plus the rules around it. Mutating calls
// run one at a time; each either commits fully or leaves no trace
// other than a refund receipt.
type Ledger struct {
	mu        sync.Mutex
	repo      Repository
	validator *escrow.Validator
	vault     *escrow.Vault
	receipts  ReceiptLister
	guard     Authorizer
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Ledger with the given dependencies. notifier may be nil.
func New(
	repo Repository,
	validator *escrow.Validator,
	vault *escrow.Vault,
	receipts ReceiptLister,
	guard Authorizer,
	notifier Notifier,
	logger *slog.Logger,
) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		repo:      repo,
		validator: validator,
		vault:     vault,
		receipts:  receipts,
		guard:     guard,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Init establishes the ledger owner. It can succeed only once.
func (l *Ledger) Init(ctx context.Context, owner domain.AccountID) error {
	if owner == "" {
		return &domain.ValidationError{Message: "owner_id is required"}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.repo.SetOwner(ctx, owner); err != nil {
		return err
	}
	l.logger.Info("ledger initialized", slog.String("owner_id", string(owner)))
	return nil
}

// Owner returns the ledger owner, or domain.ErrNotInitialized.
func (l *Ledger) Owner(ctx context.Context) (domain.AccountID, error) {
	owner, ok, err := l.repo.Owner(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrNotInitialized
	}
	return owner, nil
}

// AddCommandJSON decodes raw as an add_command payload and adds it. A
// payload that fails to decode is refunded like any other rejection.
func (l *Ledger) AddCommandJSON(ctx context.Context, call Call, raw []byte) (AddResult, error) {
	p, err := DecodeAddCommand(raw)
	if err != nil {
		return AddResult{Refund: l.reject(call, "", "add_command", err)}, err
	}
	return l.AddCommand(ctx, call, p)
}

// AddCommand creates a command owned by the caller, backed by the
// attached deposit.
func (l *Ledger) AddCommand(ctx context.Context, call Call, p AddCommandPayload) (AddResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, quote, err := l.admit(ctx, call, p)
	if err != nil {
		return AddResult{Refund: l.reject(call, p.CommandID, "add_command", err)}, err
	}

	l.vault.Hold(c.CommandID, c.Deposit)
	l.logger.Info("command added",
		slog.String("command_id", c.CommandID),
		slog.String("owner_id", string(c.OwnerID)),
		slog.String("side", string(c.Side())),
		slog.String("amount_product", c.AmountProduct.String()),
		slog.String("price_per_product", c.PricePerProduct.String()),
		slog.String("deposit", c.Deposit.String()),
		slog.String("margin", quote.Margin.String()),
		slog.Bool("certification", c.Quality != nil),
	)
	if l.notifier != nil {
		l.notifier.CommandCreated(c)
	}
	return AddResult{CommandID: c.CommandID, Quote: quote}, nil
}

// admit runs every check and, if all pass, persists the command.
func (l *Ledger) admit(ctx context.Context, call Call, p AddCommandPayload) (*domain.Command, escrow.Quote, error) {
	if _, err := l.Owner(ctx); err != nil {
		return nil, escrow.Quote{}, err
	}
	if !commandIDRegex.MatchString(p.CommandID) {
		return nil, escrow.Quote{}, errInvalidCommandID
	}
	// A taken id is reported as a duplicate whatever else the payload says.
	switch _, err := l.repo.Get(ctx, p.CommandID); {
	case err == nil:
		return nil, escrow.Quote{}, domain.ErrDuplicateID
	case !errors.Is(err, domain.ErrNotFound):
		return nil, escrow.Quote{}, err
	}
	if err := p.validate(); err != nil {
		return nil, escrow.Quote{}, err
	}

	c := &domain.Command{
		CommandID:       p.CommandID,
		NameProduct:     p.NameProduct,
		IsSell:          p.IsSell,
		AmountProduct:   p.AmountProduct,
		PricePerProduct: p.PricePerProduct,
		OwnerID:         call.Caller,
		Deposit:         call.Deposit,
	}
	if err := l.guard.AuthorizeCreate(call.Caller, c.Side()); err != nil {
		return nil, escrow.Quote{}, err
	}
	if p.AmountProduct.IsZero() {
		return nil, escrow.Quote{}, fmt.Errorf("%w: amount_product must be greater than 0", domain.ErrInvalidQuantity)
	}
	if p.PricePerProduct.IsZero() {
		return nil, escrow.Quote{}, fmt.Errorf("%w: price_per_product must be greater than 0", domain.ErrInvalidPrice)
	}
	quote, err := l.validator.Validate(call.Deposit, p.AmountProduct, p.PricePerProduct)
	if err != nil {
		return nil, escrow.Quote{}, err
	}
	if err := Attach(c, p.Quality); err != nil {
		return nil, escrow.Quote{}, err
	}

	now := l.now().UTC()
	c.Status = domain.CommandStatusCreated
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := l.repo.Create(ctx, c); err != nil {
		return nil, escrow.Quote{}, err
	}
	return c, quote, nil
}

// GetCommand returns the command with the given id. Reads are public.
func (l *Ledger) GetCommand(ctx context.Context, id string) (*domain.Command, error) {
	return l.repo.Get(ctx, id)
}

// ListCommands returns a page of commands ordered by command_id and the
// total number of matches.
func (l *Ledger) ListCommands(ctx context.Context, f store.ListFilter) ([]*domain.Command, int, error) {
	switch f.Side {
	case "", domain.SideBuy, domain.SideSell:
	default:
		return nil, 0, &domain.ValidationError{
			Message: fmt.Sprintf("Invalid side filter: '%s'. Must be one of: buy, sell", f.Side),
		}
	}
	if f.Page < 1 {
		return nil, 0, &domain.ValidationError{Message: "page must be >= 1"}
	}
	if f.Limit < 1 || f.Limit > 100 {
		return nil, 0, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}
	return l.repo.List(ctx, f)
}

// CertifyCommand appends the caller to the certificate or stage
// sequence of a command that requires certification. Certification
// calls carry no value; any attached deposit is refunded.
func (l *Ledger) CertifyCommand(ctx context.Context, call Call, id string, kind domain.CertificationKind) (*domain.Command, []*domain.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.certify(ctx, call, id, kind)
	if err != nil {
		return nil, receipts(l.reject(call, id, "certify_command", err)), err
	}

	l.logger.Info("command certified",
		slog.String("command_id", c.CommandID),
		slog.String("kind", string(kind)),
		slog.String("signer", string(call.Caller)),
		slog.Int("certificates", len(c.Quality.Certificate)),
		slog.Int("stages", len(c.Quality.Stage)),
	)
	if l.notifier != nil {
		l.notifier.CommandCertified(c, kind, call.Caller)
	}
	return c, receipts(l.vault.Refund(call.Caller, call.Deposit, id, "non_payable")), nil
}

func (l *Ledger) certify(ctx context.Context, call Call, id string, kind domain.CertificationKind) (*domain.Command, error) {
	ledgerOwner, err := l.Owner(ctx)
	if err != nil {
		return nil, err
	}
	c, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Quality == nil {
		return nil, fmt.Errorf("%w: command %s does not require certification", domain.ErrNotFound, id)
	}
	if err := l.guard.AuthorizeCertify(call.Caller, c.OwnerID, ledgerOwner); err != nil {
		return nil, err
	}
	if c.Status == domain.CommandStatusCancelled {
		return nil, domain.ErrCommandCancelled
	}

	switch kind {
	case domain.CertificationCertificate:
		err = AppendCertificate(c, call.Caller)
	case domain.CertificationStage:
		err = AppendStage(c, call.Caller)
	default:
		err = appendSignOff(c, kind, call.Caller)
	}
	if err != nil {
		return nil, err
	}

	c.UpdatedAt = l.now().UTC()
	if err := l.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// CancelCommand marks a command cancelled and releases its escrowed
// deposit to the command owner. Cancelled ids stay taken.
func (l *Ledger) CancelCommand(ctx context.Context, call Call, id string) (*domain.Command, []*domain.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, err := l.cancel(ctx, call, id)
	if err != nil {
		return nil, receipts(l.reject(call, id, "cancel_command", err)), err
	}

	released := l.vault.Release(c, "cancelled")
	l.logger.Info("command cancelled",
		slog.String("command_id", c.CommandID),
		slog.String("cancelled_by", string(call.Caller)),
		slog.String("released", c.Deposit.String()),
	)
	if l.notifier != nil {
		l.notifier.CommandCancelled(c)
	}
	return c, receipts(released, l.vault.Refund(call.Caller, call.Deposit, id, "non_payable")), nil
}

func (l *Ledger) cancel(ctx context.Context, call Call, id string) (*domain.Command, error) {
	ledgerOwner, err := l.Owner(ctx)
	if err != nil {
		return nil, err
	}
	c, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.guard.AuthorizeCancel(call.Caller, c.OwnerID, ledgerOwner); err != nil {
		return nil, err
	}
	if c.Status == domain.CommandStatusCancelled {
		return nil, domain.ErrCommandCancelled
	}

	c.Status = domain.CommandStatusCancelled
	c.UpdatedAt = l.now().UTC()
	if err := l.repo.Update(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Receipts lists the receipts issued to account, oldest first.
func (l *Ledger) Receipts(account domain.AccountID) []*domain.Receipt {
	return l.receipts.ListByAccount(account)
}

// Reject refunds the deposit of a call the transport could not hand to
// the ledger, such as one with undecodable arguments.
func (l *Ledger) Reject(call Call, method string, err error) *domain.Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.reject(call, "", method, err)
}

// reject logs a failed call and refunds its attached deposit. An
// anonymous caller has no account to refund to.
func (l *Ledger) reject(call Call, commandID, method string, err error) *domain.Receipt {
	var refund *domain.Receipt
	if call.Caller != "" {
		refund = l.vault.Refund(call.Caller, call.Deposit, commandID, ErrorCode(err))
	}
	l.logger.Warn("call rejected",
		slog.String("method", method),
		slog.String("caller", string(call.Caller)),
		slog.String("command_id", commandID),
		slog.String("deposit", call.Deposit.String()),
		slog.Bool("refunded", refund != nil),
		slog.String("error", err.Error()),
	)
	return refund
}

// ErrorCode returns the stable code of the domain error wrapped by err,
// or "internal_error".
func ErrorCode(err error) string {
	for _, sentinel := range []error{
		domain.ErrDuplicateID,
		domain.ErrInvalidQuantity,
		domain.ErrInvalidPrice,
		domain.ErrInsufficientDeposit,
		domain.ErrNotFound,
		domain.ErrUnauthorized,
		domain.ErrInvalidPayload,
		domain.ErrCommandCancelled,
		domain.ErrNotInitialized,
		domain.ErrAlreadyInitialized,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal_error"
}

func receipts(rs ...*domain.Receipt) []*domain.Receipt {
	out := make([]*domain.Receipt, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
