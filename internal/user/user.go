// Package user defines the account record used for authentication and for
// keeping the set of favorite recipes.
package user

// User represents a registered account.
type User struct {
	// ID is the ObjectID hex string of the user.
	ID string

	Name  string
	Email string

	// PasswordHash is a bcrypt hash, never exposed over HTTP.
	PasswordHash string

	// Favorites holds recipe ids in insertion order without duplicates.
	Favorites []string
}
