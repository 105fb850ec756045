// Package address parses federated emoji addresses.
//
// A federated address is the federation marker followed by a three-emoji
// location identifier and an optional resource path, for example
// "💚☮️🏴👽/bdo/42": marker 💚, location ☮️🏴👽, resource path /bdo/42.
package address

import (
	"errors"
	"strings"

	"emojifed/internal/federation/emoji"
)

const (
	// DefaultMarker is the token that marks an address as federated.
	DefaultMarker = "\U0001F49A"
	// LocationSize is the number of tokens in a location identifier.
	LocationSize = 3
)

// ErrInvalidLocation is returned when text is not exactly three emoji tokens.
var ErrInvalidLocation = errors.New("location identifier must be exactly three emoji")

// Location is a three-token location identifier. It is comparable and is
// used directly as a map key.
type Location [LocationSize]string

// String concatenates the tokens, which is the identifier's wire form.
func (l Location) String() string {
	return l[0] + l[1] + l[2]
}

// IsZero reports whether l was never populated.
func (l Location) IsZero() bool {
	return l == Location{}
}

// ParseLocation parses an identifier that must consist of exactly three emoji
// tokens and nothing else, apart from surrounding whitespace.
func ParseLocation(text string) (Location, error) {
	text = strings.TrimSpace(text)
	var loc Location
	n := 0
	next := 0
	for tok := range emoji.Tokens(text) {
		if n == LocationSize || tok.Start != next {
			return Location{}, ErrInvalidLocation
		}
		loc[n] = tok.Text
		next = tok.End
		n++
	}
	if n != LocationSize || next != len(text) {
		return Location{}, ErrInvalidLocation
	}
	return loc, nil
}

// Address is a parsed federated address. Only the parser produces one.
type Address struct {
	Prefix       string
	Location     Location
	ResourcePath string
}

// String serialises the address so that parsing it again yields the same
// Address.
func (a Address) String() string {
	return a.Prefix + a.Location.String() + a.ResourcePath
}
