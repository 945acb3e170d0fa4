// Package events defines the payloads exchanged over the pipeline's
// four channels. Payloads are JSON; decoding failures are terminal
// because a redelivered copy of a malformed message cannot parse any
// better.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/seqworks/annotation-pipeline/internal/validator"
)

// Retrieval status codes reported by cold storage on thaw completion.
const (
	RetrievalSucceeded = "Succeeded"
	RetrievalFailed    = "Failed"
)

// JobRequest asks the dispatcher to run an annotation job. The web
// layer enqueues one per submission, after creating the PENDING record.
// At least one of user id and email must identify the owner.
type JobRequest struct {
	JobID         string `json:"job_id" validate:"required"`
	UserID        string `json:"user_id" validate:"required_without=Email"`
	Email         string `json:"email" validate:"required_without=UserID"`
	InputFileName string `json:"input_file_name" validate:"required"`
	InputBucket   string `json:"input_bucket" validate:"required"`
	InputKey      string `json:"input_key" validate:"required"`
}

// JobCompleted announces a finished job to the archive worker and the
// notification fan-out.
type JobCompleted struct {
	JobID   string `json:"job_id" validate:"required"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ArchiveRequest asks the restore worker to bring a user's archived
// results back to hot storage, typically after an entitlement upgrade.
type ArchiveRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Role   string `json:"role"`
}

// ThawCompleted is delivered by cold storage when a retrieval job
// finishes. It carries no job id; the thaw worker correlates by
// archive id.
type ThawCompleted struct {
	RetrievalJobID string `json:"retrieval_job_id" validate:"required"`
	ArchiveID      string `json:"archive_id" validate:"required"`
	VaultReference string `json:"vault_reference"`
	StatusCode     string `json:"status_code"`
}

var payloadValidator = validator.NewValidator()

func Decode[T any](body []byte) (*T, error) {
	var payload T
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decoding %T: %w", payload, err)
	}
	return &payload, nil
}

func Encode(payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", payload, err)
	}
	return body, nil
}

func (r *JobRequest) Validate() error {
	if err := payloadValidator.Struct(r); err != nil {
		return fmt.Errorf("job request %s: %w", r.JobID, err)
	}
	return nil
}

func (r *JobCompleted) Validate() error {
	if err := payloadValidator.Struct(r); err != nil {
		return fmt.Errorf("job completed event %s: %w", r.JobID, err)
	}
	return nil
}

func (r *ArchiveRequest) Validate() error {
	if err := payloadValidator.Struct(r); err != nil {
		return fmt.Errorf("archive request: %w", err)
	}
	return nil
}

func (r *ThawCompleted) Validate() error {
	if err := payloadValidator.Struct(r); err != nil {
		return fmt.Errorf("thaw event %s: %w", r.ArchiveID, err)
	}
	return nil
}
