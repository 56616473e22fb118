package ledger

import (
	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// Tier is a membership label derived from balance. It is recomputed on
// every read and never persisted, so it can never go stale.
type Tier int

const (
	TierSeedling Tier = iota
	TierSprout
	TierBloomer
	TierHarvester
)

func (t Tier) String() string {
	switch t {
	case TierSprout:
		return "Sprout"
	case TierBloomer:
		return "Bloomer"
	case TierHarvester:
		return "Harvester"
	default:
		return "Seedling"
	}
}

var (
	sproutFloor    = decimal.NewFromInt(100)
	bloomerFloor   = decimal.NewFromInt(500)
	harvesterFloor = decimal.NewFromInt(1000)
)

// DeriveTier maps a balance to a tier. Total over all inputs; negative
// balances fall through to Seedling.
func DeriveTier(balance decimal.Decimal) Tier {
	switch {
	case balance.GreaterThanOrEqual(harvesterFloor):
		return TierHarvester
	case balance.GreaterThanOrEqual(bloomerFloor):
		return TierBloomer
	case balance.GreaterThanOrEqual(sproutFloor):
		return TierSprout
	default:
		return TierSeedling
	}
}

type Account struct {
	ID         string          `json:"id"`
	Username   string          `json:"username"`
	Credential string          `json:"credential"`
	Balance    decimal.Decimal `json:"balance"`
	Role       Role            `json:"role"`
}

func (a Account) Tier() Tier { return DeriveTier(a.Balance) }

// credentialMatches is the single comparison point for credentials.
// Stored values are plaintext for parity with the data this service
// inherited; substituting a hashing scheme only touches this function.
func credentialMatches(a Account, credential string) bool {
	return a.Credential == credential
}
