// Package parser extracts best-effort structured fields from a spoken phrase.
//
// The parser is a single left-to-right pass over whitespace separated tokens.
// Later tokens overwrite earlier ones in the same category.
package parser

import (
	"strings"

	"github.com/benvon/jotjot/internal/logger"
	"github.com/benvon/jotjot/internal/models"
	"go.uber.org/zap"
)

var actionWords = map[string]struct{}{
	"taking":   {},
	"applying": {},
	"took":     {},
	"applied":  {},
}

var stopWords = map[string]struct{}{
	"i'm": {},
	"i":   {},
	"am":  {},
	"the": {},
	"a":   {},
	"an":  {},
}

// Parse converts an utterance into ParsedFields. It never fails.
func Parse(utterance string) models.ParsedFields {
	words := strings.Fields(strings.ToLower(utterance))
	var parsed models.ParsedFields

	for i, word := range words {
		switch {
		case isDigits(word):
			parsed.Amount = word
			// The next token is captured as the unit but is still classified on its own turn
			if i+1 < len(words) {
				parsed.Unit = words[i+1]
			}
		case isAction(word):
			parsed.Action = word
		case !isStopWord(word):
			parsed.Substance = word
		}
	}

	return parsed
}

// Parser wraps Parse with diagnostic logging
type Parser struct {
	logger *zap.Logger
}

// New creates a new parser
func New(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse parses the utterance and logs the detected fields at debug level
func (p *Parser) Parse(utterance string) models.ParsedFields {
	parsed := Parse(utterance)
	p.logger.Debug("utterance_parsed",
		zap.String("utterance", logger.SanitizeString(utterance, logger.MaxUtteranceLength)),
		zap.String("amount", parsed.Amount),
		zap.String("unit", parsed.Unit),
		zap.String("action", parsed.Action),
		zap.String("substance", parsed.Substance),
	)
	return parsed
}

func isDigits(word string) bool {
	if word == "" {
		return false
	}
	for i := 0; i < len(word); i++ {
		if word[i] < '0' || word[i] > '9' {
			return false
		}
	}
	return true
}

func isAction(word string) bool {
	_, ok := actionWords[word]
	return ok
}

func isStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}
