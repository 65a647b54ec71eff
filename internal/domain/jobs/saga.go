package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SagaKindDocumentDelete = "document_delete"

	SagaStatusRunning     = "running"
	SagaStatusSucceeded   = "succeeded"
	SagaStatusCompensated = "compensated"
	SagaStatusFailed      = "failed"

	SagaStepStatusDone   = "done"
	SagaStepStatusFailed = "failed"
)

// Step kinds appended by the document delete saga, in order of occurrence.
const (
	StepDocumentMissing            = "document_missing"
	StepDocumentDeletedUncommitted = "document_deleted_uncommitted"
	StepVectorIDsTargeted          = "vector_ids_targeted"
	StepVectorDeleteFailed         = "vector_delete_failed"
	StepVectorDeletePartial        = "vector_delete_partial"
	StepVectorsRestored            = "vectors_restored"
	StepVectorRestoreFailed        = "vector_restore_failed"
	StepVectorDeleteSucceeded      = "vector_delete_succeeded"
	StepRolledBack                 = "rolled_back"
	StepCommitted                  = "committed"
	StepCommitFailed               = "commit_failed"
	StepReconciled                 = "reconciled"
)

// SagaRun is the durable header row of one cross-store operation.
type SagaRun struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	OwnerUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Kind        string    `gorm:"column:kind;not null;index" json:"kind"`
	DocumentID  uuid.UUID `gorm:"type:uuid;not null;index" json:"document_id"`

	// running|succeeded|compensated|failed
	Status string `gorm:"column:status;not null;index" json:"status"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (SagaRun) TableName() string { return "saga_run" }

func (r *SagaRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// SagaStep is one append-only entry of a saga's step log.
type SagaStep struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	SagaID uuid.UUID `gorm:"type:uuid;not null;index:idx_saga_step_saga_seq,unique,priority:1;index" json:"saga_id"`
	Seq    int64     `gorm:"column:seq;type:bigint;not null;index:idx_saga_step_saga_seq,unique,priority:2" json:"seq"`

	Kind    string         `gorm:"column:kind;not null;index" json:"kind"`
	Payload datatypes.JSON `gorm:"column:payload" json:"payload"`

	// done|failed
	Status string `gorm:"column:status;not null" json:"status"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (SagaStep) TableName() string { return "saga_step" }

func (s *SagaStep) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
