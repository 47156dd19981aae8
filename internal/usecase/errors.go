package usecase

import (
	"errors"
	"fmt"

	"WebResearcher/internal/domain"
)

// userMessage renders err as the text of a terminal error event.
func userMessage(err error) string {
	var (
		verr *domain.ValidationError
		perr *domain.ProviderError
		serr *domain.SynthesisError
	)
	switch {
	case errors.As(err, &verr):
		return fmt.Sprintf("Invalid request: %s %s.", verr.Field, verr.Reason)
	case errors.As(err, &perr):
		switch perr.Kind {
		case domain.ProviderRateLimited:
			return "The search provider is rate limiting requests. Please try again shortly."
		case domain.ProviderInvalidKey:
			return "The search provider rejected the configured API key."
		case domain.ProviderNetwork:
			return "The search provider could not be reached."
		default:
			return fmt.Sprintf("Search failed: %v", perr.Err)
		}
	case errors.As(err, &serr):
		return fmt.Sprintf("Could not generate an answer: %v", serr.Err)
	default:
		return fmt.Sprintf("Research failed: %v", err)
	}
}
