// internal/model/operation.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// OperationType represents the type of projector operation
type OperationType string

const (
	OperationTypePowerStatus    OperationType = "POWER_STATUS"
	OperationTypePower          OperationType = "POWER"
	OperationTypeInput          OperationType = "INPUT"
	OperationTypeMute           OperationType = "MUTE"
	OperationTypeVolume         OperationType = "VOLUME"
	OperationTypeBrightness     OperationType = "BRIGHTNESS"
	OperationTypeContrast       OperationType = "CONTRAST"
	OperationTypePictureMode    OperationType = "PICTURE_MODE"
	OperationTypeAspectRatio    OperationType = "ASPECT_RATIO"
	OperationTypeScreenPosition OperationType = "SCREEN_POSITION"
	OperationTypeScreenSize     OperationType = "SCREEN_SIZE"
	OperationTypeOverscan       OperationType = "OVERSCAN"
	OperationTypeFreeze         OperationType = "FREEZE"
	OperationTypeImageSplit     OperationType = "IMAGE_SPLIT"
	OperationTypeNetworkStart   OperationType = "NETWORK_START"
	OperationTypeNetworkApply   OperationType = "NETWORK_APPLY"
	OperationTypeIPv4Address    OperationType = "IPV4_ADDRESS"
)

// OperationStatus represents the status of an operation
type OperationStatus string

const (
	OperationStatusPending OperationStatus = "PENDING"
	OperationStatusSuccess OperationStatus = "SUCCESS"
	OperationStatusFailed  OperationStatus = "FAILED"
	OperationStatusTimeout OperationStatus = "TIMEOUT"
)

// Operation is one projector command issued through the service
type Operation struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	OperationType OperationType   `json:"operation_type" db:"operation_type"`
	OperationData JSONObject      `json:"operation_data" db:"operation_data"`
	Status        OperationStatus `json:"status" db:"status"`
	StartedAt     time.Time       `json:"started_at" db:"started_at"`
	CompletedAt   *time.Time      `json:"completed_at" db:"completed_at"`
	DurationMs    *int            `json:"duration_ms" db:"duration_ms"`
	ErrorKind     *string         `json:"error_kind,omitempty" db:"error_kind"`
	ErrorMessage  *string         `json:"error_message,omitempty" db:"error_message"`
	Result        JSONObject      `json:"result,omitempty" db:"result"`
	RequestID     *string         `json:"request_id,omitempty" db:"request_id"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}

// NewOperation creates a pending operation
func NewOperation(operationType OperationType, data JSONObject) *Operation {
	now := time.Now()
	if data == nil {
		data = JSONObject{}
	}
	return &Operation{
		ID:            uuid.New(),
		OperationType: operationType,
		OperationData: data,
		Status:        OperationStatusPending,
		StartedAt:     now,
		CreatedAt:     now,
	}
}

// Complete marks the operation finished with result
func (op *Operation) Complete(result JSONObject) {
	op.finish(OperationStatusSuccess)
	op.Result = result
}

// Fail marks the operation failed. kind is the ADCP error kind, if any.
func (op *Operation) Fail(status OperationStatus, kind string, err error) {
	op.finish(status)
	message := err.Error()
	op.ErrorMessage = &message
	if kind != "" {
		op.ErrorKind = &kind
	}
}

func (op *Operation) finish(status OperationStatus) {
	now := time.Now()
	duration := int(now.Sub(op.StartedAt).Milliseconds())
	op.Status = status
	op.CompletedAt = &now
	op.DurationMs = &duration
}

// ExecuteOperationRequest is the API payload for a projector operation
type ExecuteOperationRequest struct {
	OperationType OperationType `json:"operation_type" binding:"required"`
	OperationData JSONObject    `json:"operation_data"`
}

// SetPowerRequest is the API payload for a power change
type SetPowerRequest struct {
	On *bool `json:"on" binding:"required"`
}
