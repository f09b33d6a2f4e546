package service

import (
	"context"
	"runtime"
	"sync"

	"github.com/iliaanaa/genekor/internal/domain"
)

// WorkItem holds one target ready for evaluation.
type WorkItem struct {
	Seq    int
	Target *domain.VariantRecord
	Extra  any // caller-specific data, passed through untouched
}

// WorkResult holds the evaluation of a single target.
type WorkResult struct {
	Seq        int
	Evaluation domain.Evaluation
	Extra      any
}

// ParallelEvaluate evaluates work items against a shared read-only index using
// a pool of workers. Results arrive in completion order; use OrderedCollect to
// consume them in sequence-number order. If workers is 0, runtime.NumCPU() is
// used.
func (e *Evaluator) ParallelEvaluate(items <-chan WorkItem, index *ReferenceIndex, workers int) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make(chan WorkResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for item := range items {
				results <- WorkResult{
					Seq:        item.Seq,
					Evaluation: e.Evaluate(item.Target, index),
					Extra:      item.Extra,
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in sequence-number order.
// Out-of-order results wait in a pending map until their turn comes.
// Blocks until the results channel is closed.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	pending := make(map[int]WorkResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			if err := fn(rr); err != nil {
				// Drain remaining results to unblock workers.
				for range results {
				}
				return err
			}
		}
	}

	return nil
}

// EvaluateAll evaluates targets concurrently and returns the evaluations in
// input order. When ctx is cancelled the feeder stops, the workers drain and
// ctx.Err() is returned with the evaluations completed so far.
func (e *Evaluator) EvaluateAll(ctx context.Context, targets []*domain.VariantRecord, index *ReferenceIndex, workers int) ([]domain.Evaluation, error) {
	items := make(chan WorkItem)
	go func() {
		defer close(items)
		for i, t := range targets {
			select {
			case items <- WorkItem{Seq: i, Target: t}:
			case <-ctx.Done():
				return
			}
		}
	}()

	out := make([]domain.Evaluation, 0, len(targets))
	err := OrderedCollect(e.ParallelEvaluate(items, index, workers), func(r WorkResult) error {
		out = append(out, r.Evaluation)
		return nil
	})
	if err != nil {
		return out, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && len(out) < len(targets) {
		return out, ctxErr
	}
	return out, nil
}
