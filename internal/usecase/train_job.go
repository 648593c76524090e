package usecase

import (
	"context"
	"fmt"

	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/logger"
	"github.com/stanford201807/TW-Pulse-CLI-sub000/pkg/queue"
)

// TrainJobType is the queue message type that triggers a training run.
const TrainJobType = "sapta.train"

// TrainJob runs queued training requests.
type TrainJob struct {
	uc     *TrainingUseCase
	logger *logger.Logger
}

func NewTrainJob(uc *TrainingUseCase, lgr *logger.Logger) *TrainJob {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &TrainJob{uc: uc, logger: lgr}
}

func (j *TrainJob) Name() string { return "sapta-train" }
func (j *TrainJob) Type() string { return TrainJobType }

func (j *TrainJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[TrainParams](payload)
	if err != nil {
		return fmt.Errorf("train job payload: %w", err)
	}
	res, err := j.uc.Run(ctx, *p)
	if err != nil {
		return err
	}
	j.logger.Info("queued training finished",
		logger.String("model", res.ModelPath),
		logger.Float64("auc", res.Metrics.AUCROC),
	)
	return nil
}

var _ queue.Job = (*TrainJob)(nil)
