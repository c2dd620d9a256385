package rag

import (
	"regexp"
	"strings"

	"github.com/roeisharon/MedAI/internal/models"
)

var greetingPattern = regexp.MustCompile(`(?i)` + models.GreetingPattern)

// IsGreeting reports whether the message is a social message (greeting,
// acknowledgment, farewell) that needs no leaflet lookup. The pattern is
// anchored on both ends: the entire trimmed message must be social, so a
// greeting followed by a real question still runs the full pipeline. False
// negatives fail open to retrieval, which is the safe direction.
func IsGreeting(message string) bool {
	return greetingPattern.MatchString(strings.TrimSpace(message))
}
