package sources

import (
	"github.com/rs/zerolog"

	"github.com/examforge/harvester/pkg/question"
)

// Strategy is one pure page-to-candidates extraction attempt. Keeping
// each strategy a standalone function makes the fallback chain
// independently unit-testable.
type Strategy struct {
	Name string
	Run  func(page []byte) ([]question.RawQuestion, error)
}

// RunStrategies tries an ordered list of strategies against a page and
// returns the first non-empty result. A strategy error is a recoverable
// signal to try the next strategy, not a page failure; only when every
// strategy comes up empty does the page count as yielding nothing.
func RunStrategies(logger zerolog.Logger, url string, page []byte, strategies []Strategy) []question.RawQuestion {
	for _, strategy := range strategies {
		candidates, err := strategy.Run(page)
		if err != nil {
			logger.Debug().
				Err(err).
				Str("url", url).
				Str("strategy", strategy.Name).
				Msg("Extraction strategy failed, trying next")
			continue
		}
		if len(candidates) > 0 {
			logger.Debug().
				Str("url", url).
				Str("strategy", strategy.Name).
				Int("candidates", len(candidates)).
				Msg("Extraction strategy matched")
			return candidates
		}
	}

	logger.Warn().Str("url", url).Msg("No extraction strategy produced candidates")
	return nil
}
