package domain

import "fmt"

// Credentials hold everything needed to open one authenticated session
// against the provider for a single calendar user.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	UserHandle   string
}

// Validate checks that no credential part is missing.
func (c Credentials) Validate() error {
	if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" || c.UserHandle == "" {
		return fmt.Errorf("%w: incomplete credentials", ErrValidation)
	}
	return nil
}
