// Package doseparser turns free-text dose descriptions into structured doses
// and converts their amounts into milligrams.
package doseparser

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/giygas/doselog/routes"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Shapes of the accepted grammars, used in format errors
const (
	StandardShape = "'amount[unit] substance route'"
	VerbShape     = "'@verb amount[unit] substance'"
)

// Compiled once at package initialization
var (
	standardPattern = regexp.MustCompile(`^(\d+\.?\d*)(mg|ug|g|ml)\s+([a-zA-Z-]+)\s+([a-zA-Z-]+)$`)
	verbPattern     = regexp.MustCompile(`^(@\w+)\s+(\d+\.?\d*)(mg|ug|g|ml)\s+([a-zA-Z-]+)$`)
)

// Resolver validates route and verb tokens
type Resolver interface {
	Resolve(token string) (routes.Route, bool)
}

// ParsedDose is the raw result of parsing. Token is the route alias or verb
// exactly as written; it is not resolved to a canonical route.
type ParsedDose struct {
	Amount    float64
	Unit      Unit
	Substance string
	Token     string
}

// Parser parses dose strings against a route resolver
type Parser struct {
	resolver Resolver
}

// NewParser creates a parser. A nil resolver uses routes.Default.
func NewParser(resolver Resolver) *Parser {
	if resolver == nil {
		resolver = routes.Default
	}
	return &Parser{resolver: resolver}
}

// Parse parses text with the default route registry
func Parse(text string) (ParsedDose, error) {
	return NewParser(nil).Parse(text)
}

// Parse accepts "20mg methamphetamine oral" or "@ate 30mg adderall".
// The standard grammar is tried first; a standard match with an unknown
// route is an error and does not fall through to the verb grammar.
func (p *Parser) Parse(text string) (ParsedDose, error) {
	input := strings.TrimSpace(text)

	if m := standardPattern.FindStringSubmatch(input); m != nil {
		amount, unit, substance, route := m[1], m[2], m[3], m[4]
		if _, ok := p.resolver.Resolve(route); !ok {
			return ParsedDose{}, &ParseError{Kind: KindUnknownRoute, Input: text, Token: route, Err: ErrUnknownRoute}
		}
		return newParsedDose(text, amount, unit, substance, route)
	}

	if m := verbPattern.FindStringSubmatch(input); m != nil {
		verb, amount, unit, substance := m[1], m[2], m[3], m[4]
		if _, ok := p.resolver.Resolve(verb); !ok {
			return ParsedDose{}, &ParseError{Kind: KindUnknownVerb, Input: text, Token: verb, Err: ErrUnknownVerb}
		}
		return newParsedDose(text, amount, unit, substance, verb)
	}

	return ParsedDose{}, &ParseError{Kind: KindFormat, Input: text, Err: ErrInvalidFormat}
}

func newParsedDose(input, amount, unit, substance, token string) (ParsedDose, error) {
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return ParsedDose{}, &ParseError{Kind: KindUnexpected, Input: input, Token: amount, Err: err}
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return ParsedDose{}, &ParseError{Kind: KindUnexpected, Input: input, Token: amount, Err: errors.New("amount out of range")}
	}

	return ParsedDose{
		Amount:    value,
		Unit:      Unit(unit),
		Substance: NormalizeSubstance(substance),
		Token:     token,
	}, nil
}

// NormalizeSubstance lower-cases and trims a substance name
func NormalizeSubstance(name string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(name))
}
