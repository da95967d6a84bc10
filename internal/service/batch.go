package service

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/FredericoPerimLopes/StratCap-sub001/internal/model"
)

// BatchJob is one calculation to create and run.
type BatchJob struct {
	Name               string
	FundID             string
	TotalDistributable decimal.Decimal
	Spec               RunSpec
}

// BatchOutcome reports how one job ended. Err carries validation failures as
// well as infrastructure errors; the batch itself keeps going either way.
type BatchOutcome struct {
	Name          string
	CalculationID string
	Status        model.CalculationStatus
	Err           error
}

// RunBatch creates and runs each job with bounded concurrency. Independent
// calculations share no mutable state, so they run in parallel safely. Only
// context cancellation aborts the batch.
func (s *Service) RunBatch(ctx context.Context, jobs []BatchJob) ([]BatchOutcome, error) {
	outcomes := make([]BatchOutcome, len(jobs))

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if gCtx.Err() != nil {
				mu.Lock()
				outcomes[i] = BatchOutcome{Name: job.Name, Err: gCtx.Err()}
				mu.Unlock()
				return gCtx.Err()
			}

			outcome := s.runJob(gCtx, job)
			mu.Lock()
			outcomes[i] = outcome
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	zap.L().Info("service: batch finished",
		zap.Int("jobs", len(jobs)),
		zap.Int("failed", failed),
	)
	return outcomes, nil
}

func (s *Service) runJob(ctx context.Context, job BatchJob) BatchOutcome {
	outcome := BatchOutcome{Name: job.Name}

	calc, err := s.CreateCalculation(ctx, CreateRequest{
		FundID:             job.FundID,
		Name:               job.Name,
		TotalDistributable: job.TotalDistributable,
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.CalculationID = calc.ID

	_, runErr := s.Run(ctx, calc.ID, job.Spec)
	outcome.Err = runErr

	final, err := s.store.GetCalculation(ctx, calc.ID)
	if err == nil {
		outcome.Status = final.Status
	}
	return outcome
}
