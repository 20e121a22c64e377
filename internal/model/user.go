package model

// User is a terminal login account. The bridge has no user database:
// accounts are declared in configuration and their passwords are
// bcrypt-hashed at startup, so plain credentials never live past
// config loading.
//
// Fields:
//
//	ID           - short stable identifier ("u1").
//	Name         - display name shown on tickets and receipts.
//	Username     - login name.
//	Role         - admin | waiter | kitchen.
//	PasswordHash - bcrypt hash of the configured password.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	PasswordHash string `json:"-"`
}
