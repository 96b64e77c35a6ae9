package domain

import "strings"

// AnswerMode selects how an answer is composed from retrieved chunks.
type AnswerMode string

const (
	AnswerModeExtractive AnswerMode = "extractive"
	AnswerModeGenerative AnswerMode = "generative"
)

// ParseAnswerMode accepts the mode names case-insensitively.
func ParseAnswerMode(s string) (AnswerMode, error) {
	switch AnswerMode(strings.ToLower(strings.TrimSpace(s))) {
	case AnswerModeExtractive:
		return AnswerModeExtractive, nil
	case AnswerModeGenerative:
		return AnswerModeGenerative, nil
	}
	return "", ErrInvalidMode
}

// Answer is the composed response to a question.
type Answer struct {
	Query    string
	Answer   string
	Sources  []string
	Contexts []string
	Mode     AnswerMode
}
