package domain

import (
	"github.com/yungbote/secondbrain-backend/internal/domain/document"
	"github.com/yungbote/secondbrain-backend/internal/domain/jobs"
	"github.com/yungbote/secondbrain-backend/internal/domain/share"
	"github.com/yungbote/secondbrain-backend/internal/domain/user"
)

type User = user.User
type Document = document.Document
type ShareLink = share.ShareLink
type SagaRun = jobs.SagaRun
type SagaStep = jobs.SagaStep

// Models lists every table owned by this service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&User{},
		&Document{},
		&ShareLink{},
		&SagaRun{},
		&SagaStep{},
	}
}
