package audit

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/google/uuid"
)

// LogDTO is the API shape of an audit row.
type LogDTO struct {
	ID        uuid.UUID       `json:"id"`
	UserID    *uuid.UUID      `json:"user_id,omitempty"`
	TenantID  *uuid.UUID      `json:"tenant_id,omitempty"`
	Action    string          `json:"action"`
	IP        *string         `json:"ip,omitempty"`
	Object    *string         `json:"object,omitempty"`
	Extra     json.RawMessage `json:"extra,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func fromModel(row models.AuditLog) LogDTO {
	return LogDTO{
		ID:        row.ID,
		UserID:    row.UserID,
		TenantID:  row.TenantID,
		Action:    row.Action,
		IP:        row.IP,
		Object:    row.Object,
		Extra:     row.Extra,
		CreatedAt: row.CreatedAt,
	}
}
