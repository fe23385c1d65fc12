package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/audit"
	"github.com/MikeSquared-Agency/dealwatch/internal/crm"
	"github.com/MikeSquared-Agency/dealwatch/internal/rules"
)

// RollbackEntry reverses an audited change: it appends the ROLLBACK entry
// and re-applies the restored value to the CRM record. The rollback entry is
// returned even when the CRM update fails.
func (p *Processor) RollbackEntry(ctx context.Context, entryID, actor string) (audit.Entry, error) {
	orig, err := p.audit.Get(ctx, entryID)
	if err != nil {
		return audit.Entry{}, err
	}
	rb, err := p.audit.Rollback(ctx, entryID, actor)
	if err != nil {
		return audit.Entry{}, err
	}
	p.metrics.IncRollback()

	if p.crm == nil || rb.ProspectID == "" {
		return rb, nil
	}
	var upd crm.Update
	switch orig.Action {
	case audit.ActionStageChange:
		upd.Stage = rules.Stage(rb.NewValue)
	case audit.ActionDispositionSet:
		upd.Disposition = rules.Disposition(rb.NewValue)
	}
	if upd.Empty() {
		return rb, nil
	}
	res, err := p.crm.UpdateRecord(ctx, rb.ProspectID, upd)
	if err == nil && !res.Success {
		err = errors.New(res.Error)
	}
	if err != nil {
		p.metrics.IncCRMApply("failed")
		p.logger.Error("rollback not applied to crm", "entry_id", entryID, "rollback_id", rb.ID, "error", err)
		return rb, fmt.Errorf("re-apply rollback to record %s: %w", rb.ProspectID, err)
	}
	p.metrics.IncCRMApply("rolled_back")
	return rb, nil
}

// SweepResult counts what a maintenance pass removed.
type SweepResult struct {
	AuditEntries  int `json:"audit_entries"`
	ExpiredAlerts int `json:"expired_alerts"`
}

// Sweep applies audit retention and drops expired alerts.
func (p *Processor) Sweep(ctx context.Context, retention time.Duration) (SweepResult, error) {
	var (
		res  SweepResult
		errs []error
	)
	n, err := p.audit.Cleanup(ctx, retention)
	if err != nil {
		errs = append(errs, err)
	}
	res.AuditEntries = n
	if p.alerts != nil {
		n, err := p.alerts.CleanupExpired(ctx, p.now().UTC())
		if err != nil {
			errs = append(errs, err)
		}
		res.ExpiredAlerts = n
	}
	return res, errors.Join(errs...)
}

// RunJanitor sweeps every interval until ctx is done.
func (p *Processor) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := p.Sweep(ctx, retention)
			if err != nil {
				p.logger.Error("janitor sweep failed", "error", err)
				continue
			}
			p.logger.Debug("janitor sweep done", "audit_entries", res.AuditEntries, "expired_alerts", res.ExpiredAlerts)
		}
	}
}
