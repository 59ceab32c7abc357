package security

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

const (
	maxQuestionLength    = 160
	maxDescriptionLength = 2000
)

// Service sanitizes operator-supplied market text. Questions are stripped to
// plain text; descriptions are markdown, rendered to HTML and sanitized for
// display.
type Service struct {
	strict   *bluemonday.Policy
	ugc      *bluemonday.Policy
	markdown goldmark.Markdown
}

// NewService builds the sanitization service.
func NewService() *Service {
	return &Service{
		strict:   bluemonday.StrictPolicy(),
		ugc:      bluemonday.UGCPolicy(),
		markdown: goldmark.New(),
	}
}

// MarketInput is the raw market text from a setup request.
type MarketInput struct {
	Question    string
	Description string
}

// ValidateAndSanitize cleans and bounds the market text.
func (s *Service) ValidateAndSanitize(in MarketInput) (MarketInput, error) {
	question := strings.TrimSpace(s.strict.Sanitize(in.Question))
	if question == "" {
		return MarketInput{}, fmt.Errorf("question must not be empty after sanitization")
	}
	if len(question) > maxQuestionLength {
		return MarketInput{}, fmt.Errorf("question must be at most %d characters", maxQuestionLength)
	}
	description := strings.TrimSpace(in.Description)
	if len(description) > maxDescriptionLength {
		return MarketInput{}, fmt.Errorf("description must be at most %d characters", maxDescriptionLength)
	}
	return MarketInput{Question: question, Description: description}, nil
}

// RenderDescription converts a stored markdown description into sanitized
// HTML for market detail responses.
func (s *Service) RenderDescription(description string) (string, error) {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(description), &buf); err != nil {
		return "", err
	}
	return s.ugc.Sanitize(buf.String()), nil
}
