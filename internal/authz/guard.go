// Package authz decides who may create, certify and cancel commands.
package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/efreitasn/commandledger/internal/domain"
)

// Actions checked by the guard.
const (
	ActionCreateBuy  = "create_buy"
	ActionCreateSell = "create_sell"
	ActionCertify    = "certify"
	ActionCancel     = "cancel"
)

// Relations of a caller to the command being acted on.
const (
	RelationCaller = "caller" // any authenticated caller, no command yet
	RelationOwner  = "owner"  // the command's owner
	RelationAdmin  = "admin"  // the ledger owner, not owning the command
	RelationOther  = "other"  // anyone else
)

// The request carries the caller, its relation to the command and the
// action. Policies grant an action to a relation.
const modelText = `
[request_definition]
r = sub, rel, act

[policy_definition]
p = rel, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.rel == p.rel && r.act == p.act
`

// DefaultPolicies is the rule set the ledger runs with: anyone may
// create either side, nobody certifies their own command, and only the
// command owner or the ledger owner may cancel.
var DefaultPolicies = [][]string{
	{RelationCaller, ActionCreateBuy},
	{RelationCaller, ActionCreateSell},
	{RelationOther, ActionCertify},
	{RelationAdmin, ActionCertify},
	{RelationOwner, ActionCancel},
	{RelationAdmin, ActionCancel},
}

// Guard enforces the ledger's authorization rules.
type Guard struct {
	enforcer *casbin.Enforcer
}

// NewGuard builds a Guard loaded with the given policies. A nil slice
// loads DefaultPolicies.
func NewGuard(policies [][]string) (*Guard, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("load authorization model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}
	if policies == nil {
		policies = DefaultPolicies
	}
	if len(policies) > 0 {
		if _, err := e.AddPolicies(policies); err != nil {
			return nil, fmt.Errorf("load policies: %w", err)
		}
	}
	return &Guard{enforcer: e}, nil
}

// AuthorizeCreate checks that caller may create a command on the given side.
func (g *Guard) AuthorizeCreate(caller domain.AccountID, side domain.Side) error {
	act := ActionCreateBuy
	if side == domain.SideSell {
		act = ActionCreateSell
	}
	return g.enforce(caller, RelationCaller, act)
}

// AuthorizeCertify checks that caller may sign off on a command owned by owner.
func (g *Guard) AuthorizeCertify(caller, owner, ledgerOwner domain.AccountID) error {
	return g.enforce(caller, relation(caller, owner, ledgerOwner), ActionCertify)
}

// AuthorizeCancel checks that caller may cancel a command owned by owner.
func (g *Guard) AuthorizeCancel(caller, owner, ledgerOwner domain.AccountID) error {
	return g.enforce(caller, relation(caller, owner, ledgerOwner), ActionCancel)
}

func (g *Guard) enforce(caller domain.AccountID, rel, act string) error {
	if caller == "" {
		return fmt.Errorf("%w: caller is not authenticated", domain.ErrUnauthorized)
	}
	ok, err := g.enforcer.Enforce(string(caller), rel, act)
	if err != nil {
		return fmt.Errorf("authorize %s: %w", act, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s may not %s as %s", domain.ErrUnauthorized, caller, act, rel)
	}
	return nil
}

func relation(caller, owner, ledgerOwner domain.AccountID) string {
	switch {
	case caller == owner:
		return RelationOwner
	case ledgerOwner != "" && caller == ledgerOwner:
		return RelationAdmin
	default:
		return RelationOther
	}
}
