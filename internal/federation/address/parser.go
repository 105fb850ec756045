package address

import "emojifed/internal/federation/emoji"

// Parser recognises federated addresses for one federation marker.
type Parser struct {
	marker string
}

// Option configures a Parser.
type Option func(*Parser)

// WithMarker overrides the federation marker.
func WithMarker(marker string) Option {
	return func(p *Parser) {
		if marker != "" {
			p.marker = marker
		}
	}
}

// NewParser creates a parser for DefaultMarker unless overridden.
func NewParser(opts ...Option) *Parser {
	p := &Parser{marker: DefaultMarker}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Marker returns the federation marker this parser accepts.
func (p *Parser) Marker() string {
	return p.marker
}

// IsFederated reports whether text holds at least four emoji tokens and the
// first one is the federation marker.
func (p *Parser) IsFederated(text string) bool {
	_, ok := p.head(text)
	return ok
}

// Parse splits text into marker, location and resource path. The resource
// path is everything in the original text after the third location token,
// so literal text between the marker and the location is dropped while text
// after it is kept as-is. ok is false for anything that is not a federated
// address.
func (p *Parser) Parse(text string) (addr Address, ok bool) {
	head, ok := p.head(text)
	if !ok {
		return Address{}, false
	}
	return Address{
		Prefix:       head[0].Text,
		Location:     Location{head[1].Text, head[2].Text, head[3].Text},
		ResourcePath: text[head[LocationSize].End:],
	}, true
}

// head returns the first four tokens of text when they form a federated
// address prefix.
func (p *Parser) head(text string) ([LocationSize + 1]emoji.Token, bool) {
	var head [LocationSize + 1]emoji.Token
	n := 0
	for tok := range emoji.Tokens(text) {
		if n == 0 && tok.Text != p.marker {
			return head, false
		}
		head[n] = tok
		n++
		if n == len(head) {
			return head, true
		}
	}
	return head, false
}

var defaultParser = NewParser()

// IsFederated reports whether text is a federated address for DefaultMarker.
func IsFederated(text string) bool {
	return defaultParser.IsFederated(text)
}

// Parse parses text with DefaultMarker.
func Parse(text string) (Address, bool) {
	return defaultParser.Parse(text)
}
