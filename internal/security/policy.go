package security

import (
	"fmt"
	"unicode"

	"github.com/upb/portal-auth/config"
)

// maxPasswordBytes is the bcrypt input limit
const maxPasswordBytes = 72

// PasswordPolicy checks candidate secrets before they are hashed
type PasswordPolicy struct {
	cfg config.PasswordConfig
}

// NewPasswordPolicy creates a policy from configuration
func NewPasswordPolicy(cfg config.PasswordConfig) *PasswordPolicy {
	return &PasswordPolicy{cfg: cfg}
}

// Check returns one description per violated rule; an empty result means the password is acceptable.
func (p *PasswordPolicy) Check(password string) []string {
	var reasons []string

	if len(password) < p.cfg.MinLength {
		reasons = append(reasons, fmt.Sprintf("Passwords must be at least %d characters.", p.cfg.MinLength))
	}
	if len(password) > maxPasswordBytes {
		reasons = append(reasons, fmt.Sprintf("Passwords must be at most %d bytes.", maxPasswordBytes))
	}

	var hasDigit, hasLower, hasUpper, hasOther bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case !unicode.IsLetter(r):
			hasOther = true
		}
	}

	if p.cfg.RequireNonAlphanumeric && !hasOther {
		reasons = append(reasons, "Passwords must have at least one non alphanumeric character.")
	}
	if p.cfg.RequireDigit && !hasDigit {
		reasons = append(reasons, "Passwords must have at least one digit ('0'-'9').")
	}
	if p.cfg.RequireLowercase && !hasLower {
		reasons = append(reasons, "Passwords must have at least one lowercase ('a'-'z').")
	}
	if p.cfg.RequireUppercase && !hasUpper {
		reasons = append(reasons, "Passwords must have at least one uppercase ('A'-'Z').")
	}

	return reasons
}
