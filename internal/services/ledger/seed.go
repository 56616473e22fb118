package ledger

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"
)

// Seed layout: one administrator, two moderators, then a batch of
// ordinary users with random balances spanning every tier.
const seededUserCount = 22

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func (s *Service) seedLocked(ctx context.Context) (*document, error) {
	users := []Account{
		{
			ID:         "admin",
			Username:   "admin",
			Credential: "adminpassword123",
			Balance:    decimal.NewFromInt(5000),
			Role:       RoleAdmin,
		},
		{
			ID:         "mod1",
			Username:   "mod1",
			Credential: "modpassword",
			Balance:    decimal.NewFromInt(1500),
			Role:       RoleModerator,
		},
		{
			ID:         "mod2",
			Username:   "mod2",
			Credential: "modpassword",
			Balance:    decimal.NewFromInt(800),
			Role:       RoleModerator,
		},
	}

	for i := 1; i <= seededUserCount; i++ {
		name := fmt.Sprintf("user_%d", i)
		users = append(users, Account{
			ID:         name,
			Username:   name,
			Credential: "pass_" + randomSuffix(s.rng),
			Balance:    decimal.NewFromInt(int64(s.rng.IntN(2000))),
			Role:       RoleUser,
		})
	}

	doc := &document{Users: users}

	err := s.saveLocked(ctx, doc)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

func randomSuffix(rng *rand.Rand) string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = suffixAlphabet[rng.IntN(len(suffixAlphabet))]
	}

	return string(b)
}
