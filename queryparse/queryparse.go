// Package queryparse turns a free-text query string into an ordered
// sequence of typed filter elements.
//
// The grammar is deliberately small: whitespace separated terms, double
// quotes to protect spaces, "key:value" pairs, "@from:TS" / "@to:TS"
// range bounds, and a leading "-" for negation. The storage layer maps
// each element onto a SQL predicate; how is its business, not ours.
package queryparse

import (
	"fmt"
	"strings"
)

// Kind discriminates the element types a query string can produce.
type Kind int

const (
	// KindString is a bare substring match over the whole document.
	KindString Kind = iota
	// KindKeyValue matches a named field against a value.
	KindKeyValue
	// KindFrom is a lower time bound.
	KindFrom
	// KindTo is an upper time bound.
	KindTo
)

// Element is one parsed filter term.
type Element struct {
	Kind    Kind
	Negated bool
	Key     string
	Value   string
}

// Parse tokenizes a query string into elements, preserving order.
func Parse(query string) ([]Element, error) {
	tokens, err := tokenize(query)
	if err != nil {
		return nil, err
	}

	var elements []Element
	for _, token := range tokens {
		negated := false
		if strings.HasPrefix(token, "-") && len(token) > 1 {
			negated = true
			token = token[1:]
		}

		key, value, found := strings.Cut(token, ":")
		if !found || key == "" {
			elements = append(elements, Element{
				Kind:    KindString,
				Negated: negated,
				Value:   token,
			})
			continue
		}

		switch key {
		case "@from":
			elements = append(elements, Element{Kind: KindFrom, Value: value})
		case "@to":
			elements = append(elements, Element{Kind: KindTo, Value: value})
		default:
			elements = append(elements, Element{
				Kind:    KindKeyValue,
				Negated: negated,
				Key:     key,
				Value:   value,
			})
		}
	}

	return elements, nil
}

// tokenize splits on whitespace outside of double quotes. Quotes bind
// tighter than the key separator, so `alert.signature:"foo bar"` is one
// token.
func tokenize(query string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	inQuotes := false

	for _, r := range query {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case !inQuotes && (r == ' ' || r == '\t' || r == '\n'):
			if current.Len() > 0 {
				tokens = append(tokens, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}

	if inQuotes {
		return nil, fmt.Errorf("unterminated quote in query: %q", query)
	}
	if current.Len() > 0 {
		tokens = append(tokens, current.String())
	}

	return tokens, nil
}
