package auth

import "errors"

var (
	// ErrInvalidCredentials is returned for both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("incorrect email or password")

	// ErrUnauthenticated covers a missing or malformed bearer header, a bad token
	// and a token whose subject no longer resolves to a user.
	ErrUnauthenticated = errors.New("could not validate credentials")

	ErrInactiveUser          = errors.New("inactive user")
	ErrInsufficientPrivilege = errors.New("the user doesn't have enough privileges")

	// ErrInvalidToken wraps every token decode failure.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMalformedHash means a stored password hash could not be parsed.
	ErrMalformedHash = errors.New("malformed password hash")

	ErrMissingSecret = errors.New("token signing secret is not configured")
)
