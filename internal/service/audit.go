package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-hall-api/internal/models"
)

type auditLogger interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// recordAudit writes an audit row and logs a warning on failure. It never fails the caller.
func recordAudit(ctx context.Context, audit auditLogger, logger *zap.Logger, actorID, action, resource, resourceID string, oldValue, newValue interface{}) {
	if audit == nil {
		return
	}
	entry := &models.AuditLog{Action: action, Resource: resource}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if oldValue != nil {
		entry.OldValues, _ = json.Marshal(oldValue)
	}
	if newValue != nil {
		entry.NewValues, _ = json.Marshal(newValue)
	}
	if err := audit.Create(ctx, entry); err != nil {
		logger.Warn("failed to record audit", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}
