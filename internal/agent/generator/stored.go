package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/event-content-agent/internal/batch"
	"github.com/event-content-agent/internal/export"
	"github.com/event-content-agent/internal/models"
	"github.com/event-content-agent/internal/storage"
)

// ErrNoRepository is returned by operations on stored runs when no repository is configured
var ErrNoRepository = errors.New("no repository configured")

// StoredRun is a persisted run with its content
type StoredRun struct {
	Run   *models.GenerationRun
	Items []*models.ContentItem
}

// LoadRun fetches a run and all of its content, errors included. An empty
// runID selects the latest completed run.
func (a *Agent) LoadRun(ctx context.Context, runID string) (*StoredRun, error) {
	if a.repo == nil {
		return nil, ErrNoRepository
	}

	var (
		run *models.GenerationRun
		err error
	)
	if runID == "" {
		run, err = a.repo.LatestRun(ctx, models.RunStatusCompleted)
	} else {
		run, err = a.repo.GetRun(ctx, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %q: %w", runID, err)
	}

	items, err := a.repo.ListContent(ctx, storage.ContentFilter{
		RunID:         run.RunID,
		IncludeErrors: true,
		OrderBy:       "priority",
		OrderDesc:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load content for run %s: %w", run.RunID, err)
	}

	return &StoredRun{Run: run, Items: items}, nil
}

// ExportRun writes a stored run's content again in the given formats
func (a *Agent) ExportRun(ctx context.Context, runID string, formats []export.Format) ([]string, error) {
	stored, err := a.LoadRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(stored.Items) == 0 {
		return nil, fmt.Errorf("run %s: %w", stored.Run.RunID, export.ErrNoContent)
	}

	finished := a.now()
	if stored.Run.CompletedAt != nil {
		finished = *stored.Run.CompletedAt
	}
	md := batch.BuildMetadata(stored.Items, stored.Run.StartedAt, finished)

	files, err := a.writer.SaveAll(stored.Items, md, formats, a.now())
	if err != nil {
		return nil, fmt.Errorf("failed to export run %s: %w", stored.Run.RunID, err)
	}
	a.log.Info().Str("run_id", stored.Run.RunID).Strs("files", files).Msg("Exported stored run")
	return files, nil
}

// SendWebhook posts a stored run's best content to the webhook
func (a *Agent) SendWebhook(ctx context.Context, runID string, maxItems int) (export.WebhookPayload, error) {
	if a.webhook == nil {
		return export.WebhookPayload{}, fmt.Errorf("webhook is not enabled")
	}
	stored, err := a.LoadRun(ctx, runID)
	if err != nil {
		return export.WebhookPayload{}, err
	}
	if maxItems <= 0 {
		maxItems = a.cfg.Export.WebhookMaxItems
	}

	payload := export.BuildWebhookPayload(stored.Items, maxItems, a.now())
	if err := a.webhook.Send(ctx, payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// SyncTracker mirrors a stored run's content into the tracker sheet
func (a *Agent) SyncTracker(ctx context.Context, runID string) (int, int, error) {
	if a.tracker == nil {
		return 0, 0, fmt.Errorf("tracker is not enabled")
	}
	stored, err := a.LoadRun(ctx, runID)
	if err != nil {
		return 0, 0, err
	}
	return a.tracker.SyncContent(ctx, stored.Items)
}
