package utils

import "golang.org/x/crypto/bcrypt"

// MaxPasswordBytes is the longest input bcrypt hashes; longer passwords
// are rejected rather than truncated.
const MaxPasswordBytes = 72

// Passwords hashes and checks account passwords with a fixed bcrypt cost.
type Passwords struct {
	cost int
}

// NewPasswords clamps cost into the range bcrypt accepts.
func NewPasswords(cost int) Passwords {
	switch {
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return Passwords{cost: cost}
}

// Cost reports the work factor new hashes are generated with.
func (p Passwords) Cost() int { return p.cost }

// Hash fails with bcrypt.ErrPasswordTooLong beyond MaxPasswordBytes.
func (p Passwords) Hash(plain string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(plain), p.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Match is false for a malformed stored hash as well as a wrong password.
func (p Passwords) Match(stored, plain string) bool {
	if stored == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(plain)) == nil
}
