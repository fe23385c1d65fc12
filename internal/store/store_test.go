package store

import (
	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
	"github.com/MikeSquared-Agency/dealwatch/internal/audit"
	"github.com/MikeSquared-Agency/dealwatch/internal/stall"
)

var (
	_ audit.Repository       = (*AuditRepository)(nil)
	_ alerts.Store           = (*Store)(nil)
	_ stall.SignalRepository = (*Store)(nil)
	_ stall.StatusRepository = (*Store)(nil)
	_ stall.DealDirectory    = (*Store)(nil)
)
