package domain

import "strings"

type TokenPair struct {
	AccessToken string
	// RefreshToken is optional; some backends only issue access tokens.
	RefreshToken string
}

func (p TokenPair) Empty() bool {
	return strings.TrimSpace(p.AccessToken) == ""
}

type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

type AuthSession struct {
	Tokens TokenPair
	User   User
}

type Registration struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Password  string `json:"password"`
}
