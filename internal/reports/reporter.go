package reports

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/multibroker/oms/internal/logger"
	"github.com/multibroker/oms/internal/model"
)

const _defaultInterval = 15 * time.Second

// accountPositions mirrors one dispatcher outcome carrying positions.
type accountPositions struct {
	ClientID string           `json:"client_id"`
	Response []model.Position `json:"response"`
	Err      string           `json:"error,omitempty"`
}

type accountPending struct {
	ClientID string               `json:"client_id"`
	Response []model.PendingOrder `json:"response"`
	Err      string               `json:"error,omitempty"`
}

// Reporter polls the dispatcher's HTTP surface on a fixed interval and
// persists what it sees. Hitting /positions also drives the risk sweep on
// the server side, so the reporter doubles as the risk heartbeat.
type Reporter struct {
	client   *resty.Client
	store    *Store
	interval time.Duration
	logger   logger.Logger
}

func NewReporter(baseURL string, store *Store, interval time.Duration, log logger.Logger) *Reporter {
	if interval <= 0 {
		interval = _defaultInterval
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second)
	return &Reporter{
		client:   client,
		store:    store,
		interval: interval,
		logger:   log,
	}
}

// Run polls until the context is cancelled. A failed cycle is logged and
// skipped; the next tick starts fresh.
func (r *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.client.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.collect(ctx); err != nil {
				r.logger.Errorf("collect cycle failed: %v", err)
			}
		}
	}
}

func (r *Reporter) collect(ctx context.Context) error {
	takenAt := time.Now().UTC()

	var positions []accountPositions
	if err := r.get(ctx, "/positions", &positions); err != nil {
		return err
	}
	var pending []accountPending
	if err := r.get(ctx, "/pending", &pending); err != nil {
		return err
	}
	var mtm []model.MTMEntry
	if err := r.get(ctx, "/mtm", &mtm); err != nil {
		return err
	}

	var allPositions []model.Position
	for _, acc := range positions {
		if acc.Err != "" {
			r.logger.Warnf("positions unavailable for %s: %s", acc.ClientID, acc.Err)
			continue
		}
		if err := r.store.SavePositions(ctx, takenAt, acc.ClientID, acc.Response); err != nil {
			return err
		}
		allPositions = append(allPositions, acc.Response...)
	}

	var allPending []model.PendingOrder
	for _, acc := range pending {
		if acc.Err != "" {
			r.logger.Warnf("pending orders unavailable for %s: %s", acc.ClientID, acc.Err)
			continue
		}
		if err := r.store.SavePending(ctx, takenAt, acc.ClientID, acc.Response); err != nil {
			return err
		}
		allPending = append(allPending, acc.Response...)
	}

	if err := r.store.SaveMTM(ctx, takenAt, mtm); err != nil {
		return err
	}

	rows := BuildReport(allPositions, allPending)
	if err := r.store.SaveReport(ctx, takenAt, rows); err != nil {
		return err
	}

	r.logger.Infof("saved cycle: %d positions, %d pending, %d symbols", len(allPositions), len(allPending), len(rows))
	return nil
}

func (r *Reporter) get(ctx context.Context, path string, out any) error {
	res, err := r.client.R().
		SetContext(ctx).
		SetResult(out).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: can't fetch %s", err, path)
	}
	if res.IsError() {
		return fmt.Errorf("can't fetch %s: status %s", path, res.Status())
	}
	return nil
}
