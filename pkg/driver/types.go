// pkg/driver/types.go
package driver

import (
	"time"
)

// OperationResult represents the result of a projector operation
type OperationResult struct {
	Success   bool                   `json:"success"`
	Commands  []string               `json:"commands"`
	Response  string                 `json:"response,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Duration  string                 `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
}

// HealthMetrics contains device health information
type HealthMetrics struct {
	HealthScore     int           `json:"health_score"` // 0-100
	ResponseTime    time.Duration `json:"response_time"`
	SuccessRate     float64       `json:"success_rate"` // 0.0-1.0
	ErrorCount      int64         `json:"error_count"`
	TotalOperations int64         `json:"total_operations"`
	LastErrorTime   *time.Time    `json:"last_error_time,omitempty"`
	LastSuccessTime *time.Time    `json:"last_success_time,omitempty"`
}
