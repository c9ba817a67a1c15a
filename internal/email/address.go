package email

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidEmail indicates an email address is not valid.
var ErrInvalidEmail = errors.New("invalid email address")

// addressPattern accepts addresses of the shape local@domain.tld with a
// dotted domain and a 2-4 letter TLD. This is deliberately stricter
// than RFC 5322, we only want addresses we can actually deliver to.
var addressPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+@([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,4}$`)

// Address is how accountd represents email addresses.
//
// Addresses are compared exactly as stored, no case normalization is
// applied anywhere.
type Address string

// ParseAddress parses the given string and checks if it's shaped like an
// email address. It returns an error if the input is not a valid email
// address. Note that this doesn't guarantee the email address actually
// exists, it only checks the format.
func ParseAddress(raw string) (Address, error) {
	trimmed := strings.TrimSpace(raw)

	if !addressPattern.MatchString(trimmed) {
		return Address(""), ErrInvalidEmail
	}

	return Address(trimmed), nil
}

func (a *Address) UnmarshalText(text []byte) error {
	addr, err := ParseAddress(string(text))
	if err != nil {
		return err
	}

	*a = addr

	return nil
}
