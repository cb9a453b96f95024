package model

import (
	"strings"
	"time"
)

type Provider struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Registration is the input for creating a provider account.
type Registration struct {
	Username string `validate:"username"`
	Email    string `validate:"client_email,max=254"`
	Password string `validate:"min=8,max=72"`
}

var registrationReasons = map[string]string{
	"Username": "must be 3-32 characters of a-z, 0-9, '_' or '-'",
	"Email":    "must be a valid email address",
	"Password": "must be between 8 and 72 characters",
}

func NewRegistration(username, email, password string) (Registration, error) {
	r := Registration{
		Username: NormalizeUsername(username),
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
	}
	if err := validateStruct(r, registrationReasons); err != nil {
		return Registration{}, err
	}
	return r, nil
}

func NormalizeUsername(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
