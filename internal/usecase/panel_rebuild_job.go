package usecase

import (
	"context"

	"QuantShield/pkg/logger"
	"QuantShield/pkg/queue"
)

// PanelRebuildType is the queue message type for panel rebuild requests.
const PanelRebuildType = "panel.rebuild"

// PanelRebuildPayload carries the request context for one rebuild.
type PanelRebuildPayload struct {
	Reason      string `json:"reason,omitempty"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// PanelRebuildJob consumes panel.rebuild messages and runs a full rebuild.
// Rebuilds are heavyweight, so they go through the queue instead of
// blocking an HTTP request.
type PanelRebuildJob struct {
	svc *PanelService
	l   *logger.Logger
}

func NewPanelRebuildJob(svc *PanelService, l *logger.Logger) *PanelRebuildJob {
	return &PanelRebuildJob{svc: svc, l: l}
}

func (j *PanelRebuildJob) Name() string { return "panel-rebuild" }

func (j *PanelRebuildJob) Type() string { return PanelRebuildType }

func (j *PanelRebuildJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[PanelRebuildPayload](payload)
	if err != nil {
		return err
	}

	report, err := j.svc.Rebuild(ctx)
	if err != nil {
		j.l.Error("panel rebuild failed",
			logger.String("reason", p.Reason),
			logger.Error(err),
		)
		return err
	}

	j.l.Info("panel rebuild done",
		logger.String("reason", p.Reason),
		logger.Int("rows", report.Rows),
		logger.Int("skipped", len(report.Skipped)),
	)
	return nil
}

var _ queue.Job = (*PanelRebuildJob)(nil)
