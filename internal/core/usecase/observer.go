package usecase

import (
	"time"

	"github.com/whatsgood/brand-retrieval/internal/core/domain"
)

// RetrievalObserver receives retrieval and learning events for metrics.
type RetrievalObserver interface {
	ObserveRetrieval(mode string, results int, duration time.Duration)
	ObserveStrategyResults(strategy domain.StrategyName, results int)
	ObserveStrategyFailure(strategy domain.StrategyName, reason string)
	ObserveFeedback(perf domain.StrategyPerformance, success bool)
	ObserveLexicalIndexSize(docs int)
}

type noopObserver struct{}

func (noopObserver) ObserveRetrieval(string, int, time.Duration)        {}
func (noopObserver) ObserveStrategyResults(domain.StrategyName, int)    {}
func (noopObserver) ObserveStrategyFailure(domain.StrategyName, string) {}
func (noopObserver) ObserveFeedback(domain.StrategyPerformance, bool)   {}
func (noopObserver) ObserveLexicalIndexSize(int)                        {}

func observerOrNoop(o RetrievalObserver) RetrievalObserver {
	if o == nil {
		return noopObserver{}
	}
	return o
}
