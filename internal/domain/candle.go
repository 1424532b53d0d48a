package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Color is the outcome label of a single candle.
type Color string

// Candle colors.
const (
	ColorGreen Color = "GREEN"
	ColorRed   Color = "RED"
)

// IsValid reports whether c is a known candle color.
func (c Color) IsValid() bool {
	return c == ColorGreen || c == ColorRed
}

// Pattern key layout.
const (
	PatternDelimiter = "_"
	PatternLength    = 3
	SequenceLength   = PatternLength + 1 // pattern + actual outcome
)

// ErrInvalidPattern is returned when a pattern key cannot be parsed.
var ErrInvalidPattern = errors.New("invalid pattern key")

// PatternKey joins exactly PatternLength colors into a strategy name, e.g. GREEN_RED_GREEN.
func PatternKey(colors []Color) (string, error) {
	if len(colors) != PatternLength {
		return "", fmt.Errorf("%w: want %d colors, got %d", ErrInvalidPattern, PatternLength, len(colors))
	}

	parts := make([]string, len(colors))
	for i, c := range colors {
		if !c.IsValid() {
			return "", fmt.Errorf("%w: unknown color %q", ErrInvalidPattern, c)
		}
		parts[i] = string(c)
	}
	return strings.Join(parts, PatternDelimiter), nil
}

// ParsePattern splits a pattern key back into its colors.
func ParsePattern(key string) ([]Color, error) {
	parts := strings.Split(key, PatternDelimiter)
	if len(parts) != PatternLength {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, key)
	}

	colors := make([]Color, len(parts))
	for i, p := range parts {
		c := Color(p)
		if !c.IsValid() {
			return nil, fmt.Errorf("%w: unknown color %q in %q", ErrInvalidPattern, p, key)
		}
		colors[i] = c
	}
	return colors, nil
}

// PatternDirection returns the color the pattern "predicts": its last element.
func PatternDirection(key string) (Color, error) {
	colors, err := ParsePattern(key)
	if err != nil {
		return "", err
	}
	return colors[PatternLength-1], nil
}
