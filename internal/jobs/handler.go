package jobs

import (
	"context"
	"fmt"

	"github.com/dvloznov/fraud-scoring/internal/domain"
	"github.com/dvloznov/fraud-scoring/internal/logger"
)

// Scorer is the scoring entry point jobs depend on.
type Scorer interface {
	Score(ctx context.Context, tx domain.Transaction, userID string) domain.ScoringResult
}

// NewScoreHandler returns the handler for score jobs. Scoring itself never
// fails; only the write-back through recorder can, and that is what a
// retry repeats. recorder may be nil when results are only reported.
func NewScoreHandler(scorer Scorer, recorder domain.ScoreRecorder) JobHandler {
	return func(ctx context.Context, job Job) error {
		j, ok := job.(*ScoreTransactionJob)
		if !ok {
			return fmt.Errorf("unsupported job type %s", job.GetType())
		}

		log := logger.FromContext(ctx).With().
			Str("job_id", j.JobID).
			Str("user_id", j.Request.UserID).
			Logger()

		if j.Result == nil {
			result := scorer.Score(ctx, j.Request.Transaction(), j.Request.UserID)
			j.Result = &result
		}

		if recorder == nil || j.Request.TransactionID == "" {
			return nil
		}
		if err := recorder.RecordScore(ctx, j.Request.TransactionID, *j.Result); err != nil {
			log.Warn().Err(err).Str("transaction_id", j.Request.TransactionID).Msg("Failed to record fraud score")
			return fmt.Errorf("recording score for %s: %w", j.Request.TransactionID, err)
		}

		log.Info().
			Str("transaction_id", j.Request.TransactionID).
			Int("is_fraud", j.Result.IsFraud).
			Float64("fraud_probability", j.Result.FraudProbability).
			Msg("Fraud score recorded")
		return nil
	}
}
