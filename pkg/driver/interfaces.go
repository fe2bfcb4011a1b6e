// pkg/driver/interfaces.go
package driver

import (
	"context"

	"adcp-service/internal/model"
)

// Commander is the command channel a driver talks through
type Commander interface {
	// Execute connects if needed, sends one command and returns its response frame
	Execute(ctx context.Context, command string) (string, error)
	// Shutdown releases the session's socket
	Shutdown()
}

// PowerSwitch is the narrow surface exposed to a host adapter
type PowerSwitch interface {
	GetPowerState(ctx context.Context) (bool, error)
	SetPowerState(ctx context.Context, on bool) (string, error)
	Shutdown()
}

// ProjectorDriver is the full command vocabulary of a projector
type ProjectorDriver interface {
	PowerSwitch

	// Input and audio
	SetInput(ctx context.Context, input string) error
	MuteAudio(ctx context.Context, on bool) error
	SetVolume(ctx context.Context, level int) error

	// Picture
	SetBrightness(ctx context.Context, level int) error
	SetContrast(ctx context.Context, level int) error
	SetPictureMode(ctx context.Context, mode string) error

	// Display geometry
	SetAspectRatio(ctx context.Context, aspect string) error
	SetScreenPosition(ctx context.Context, position string) error
	SetScreenSize(ctx context.Context, size string) error
	SetOverscan(ctx context.Context, on bool) error
	Freeze(ctx context.Context, on bool) error
	SetImageSplit(ctx context.Context, mode string) error

	// Network settings
	StartNetworkSettings(ctx context.Context) error
	ApplyNetworkSettings(ctx context.Context) error
	SetIPv4Address(ctx context.Context, ipAddress, subnetMask, gateway string) error

	// Operations and health
	ExecuteOperation(ctx context.Context, operation *model.Operation) (*OperationResult, error)
	GetHealthMetrics() *HealthMetrics
	GetDeviceInfo() *model.ProjectorInfo
}
