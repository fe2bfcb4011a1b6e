// internal/driver/sony/projector.go
package sony

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"adcp-service/internal/model"
	"adcp-service/internal/utils"
	"adcp-service/pkg/driver"
)

const (
	Manufacturer = "Sony"
	DefaultModel = "VPL-XW5000ES"
)

// Projector implements driver.ProjectorDriver for Sony VPL projectors over
// ADCP. Every method is one or more command round trips; errors from the
// command channel are returned as is and nothing is retried.
type Projector struct {
	client        driver.Commander
	info          *model.ProjectorInfo
	logger        *utils.DeviceLogger
	healthMetrics *driver.HealthMetrics
	mutex         sync.RWMutex
}

// NewProjector creates a Sony projector driver speaking through client
func NewProjector(client driver.Commander, info *model.ProjectorInfo, logger *zap.Logger) *Projector {
	deviceInfo := *info
	if deviceInfo.Manufacturer == "" {
		deviceInfo.Manufacturer = Manufacturer
	}
	if deviceInfo.Model == "" {
		deviceInfo.Model = DefaultModel
	}
	deviceInfo.Brand = model.BrandSony
	deviceInfo.ConnectionType = model.ConnectionTypeTCP

	return &Projector{
		client:        client,
		info:          &deviceInfo,
		logger:        utils.NewDeviceLogger(logger, deviceInfo.Name, string(model.DeviceTypeProjector), string(model.BrandSony)),
		healthMetrics: &driver.HealthMetrics{},
	}
}

// NewProjectorDriver is the registry factory for Sony projectors
func NewProjectorDriver(client driver.Commander, info *model.ProjectorInfo, logger *zap.Logger) (driver.ProjectorDriver, error) {
	return NewProjector(client, info, logger), nil
}

// GetPowerState queries power_status and reports whether the projector is on
func (p *Projector) GetPowerState(ctx context.Context) (bool, error) {
	response, err := p.send(ctx, queryPowerStatus)
	if err != nil {
		return false, err
	}
	return parsePowerState(response), nil
}

// SetPowerState switches the projector on or off and returns the raw response
func (p *Projector) SetPowerState(ctx context.Context, on bool) (string, error) {
	return p.send(ctx, switchCommand(KeywordPower, on))
}

// SetInput selects the input terminal
func (p *Projector) SetInput(ctx context.Context, input string) error {
	return p.sendValue(ctx, KeywordInput, input)
}

// MuteAudio switches audio muting
func (p *Projector) MuteAudio(ctx context.Context, on bool) error {
	_, err := p.send(ctx, switchCommand(KeywordMuting, on))
	return err
}

// SetVolume sets the audio volume level
func (p *Projector) SetVolume(ctx context.Context, level int) error {
	_, err := p.send(ctx, levelCommand(KeywordVolume, level))
	return err
}

func (p *Projector) SetBrightness(ctx context.Context, level int) error {
	_, err := p.send(ctx, levelCommand(KeywordBrightness, level))
	return err
}

func (p *Projector) SetContrast(ctx context.Context, level int) error {
	_, err := p.send(ctx, levelCommand(KeywordContrast, level))
	return err
}

func (p *Projector) SetPictureMode(ctx context.Context, mode string) error {
	return p.sendValue(ctx, KeywordPictureMode, mode)
}

func (p *Projector) SetAspectRatio(ctx context.Context, aspect string) error {
	return p.sendValue(ctx, KeywordAspect, aspect)
}

// SetScreenPosition sets the vertical center
func (p *Projector) SetScreenPosition(ctx context.Context, position string) error {
	return p.sendValue(ctx, KeywordVCenter, position)
}

// SetScreenSize sets the vertical size
func (p *Projector) SetScreenSize(ctx context.Context, size string) error {
	return p.sendValue(ctx, KeywordVSize, size)
}

func (p *Projector) SetOverscan(ctx context.Context, on bool) error {
	_, err := p.send(ctx, switchCommand(KeywordOverscan, on))
	return err
}

// Freeze holds the current picture
func (p *Projector) Freeze(ctx context.Context, on bool) error {
	_, err := p.send(ctx, switchCommand(KeywordFreeze, on))
	return err
}

func (p *Projector) SetImageSplit(ctx context.Context, mode string) error {
	return p.sendValue(ctx, KeywordImageSplit, mode)
}

// StartNetworkSettings opens a network settings transaction
func (p *Projector) StartNetworkSettings(ctx context.Context) error {
	_, err := p.send(ctx, networkStart)
	return err
}

// ApplyNetworkSettings commits pending network settings
func (p *Projector) ApplyNetworkSettings(ctx context.Context) error {
	_, err := p.send(ctx, networkApply)
	return err
}

// SetIPv4Address sends address, mask and gateway, then applies them. The
// sequence stops at the first failed command.
func (p *Projector) SetIPv4Address(ctx context.Context, ipAddress, subnetMask, gateway string) error {
	commands, err := ipv4Commands(ipAddress, subnetMask, gateway)
	if err != nil {
		return err
	}
	_, err = p.sendAll(ctx, commands)
	return err
}

// Shutdown tears the ADCP session down
func (p *Projector) Shutdown() {
	p.logger.LogConnection("shutdown", true, nil)
	p.client.Shutdown()
}

// ExecuteOperation runs a typed operation and reports what was sent
func (p *Projector) ExecuteOperation(ctx context.Context, operation *model.Operation) (*driver.OperationResult, error) {
	startTime := time.Now()

	commands, err := operationCommands(operation)
	if err != nil {
		return nil, err
	}

	response, err := p.sendAll(ctx, commands)
	duration := time.Since(startTime)
	p.logger.LogOperation(string(operation.OperationType), operation.ID.String(), duration, err == nil, err)
	if err != nil {
		return nil, err
	}

	result := &driver.OperationResult{
		Success:   true,
		Commands:  commands,
		Response:  response,
		Duration:  duration.String(),
		Timestamp: time.Now(),
	}

	switch operation.OperationType {
	case model.OperationTypePowerStatus:
		result.Data = map[string]interface{}{"on": parsePowerState(response)}
	case model.OperationTypePower:
		on, _ := operation.OperationData.BoolField("on")
		result.Data = map[string]interface{}{"on": on}
	}

	return result, nil
}

// GetHealthMetrics returns health metrics
func (p *Projector) GetHealthMetrics() *driver.HealthMetrics {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	metrics := *p.healthMetrics
	return &metrics
}

// GetDeviceInfo returns the projector description
func (p *Projector) GetDeviceInfo() *model.ProjectorInfo {
	info := *p.info
	return &info
}

func (p *Projector) sendValue(ctx context.Context, keyword, value string) error {
	command, err := valueCommand(keyword, value)
	if err != nil {
		return err
	}
	_, err = p.send(ctx, command)
	return err
}

// sendAll runs commands in order and returns the last response
func (p *Projector) sendAll(ctx context.Context, commands []string) (string, error) {
	var response string
	for _, command := range commands {
		resp, err := p.send(ctx, command)
		if err != nil {
			return "", err
		}
		response = resp
	}
	return response, nil
}

func (p *Projector) send(ctx context.Context, command string) (string, error) {
	startTime := time.Now()
	response, err := p.client.Execute(ctx, command)
	duration := time.Since(startTime)

	p.updateHealthMetrics(err == nil, duration)
	p.logger.LogCommand(command, strings.TrimSpace(response), duration, err)
	return response, err
}

func (p *Projector) updateHealthMetrics(success bool, responseTime time.Duration) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	m := p.healthMetrics
	m.TotalOperations++
	m.ResponseTime = responseTime

	now := time.Now()
	if success {
		m.LastSuccessTime = &now
	} else {
		m.ErrorCount++
		m.LastErrorTime = &now
	}
	m.SuccessRate = float64(m.TotalOperations-m.ErrorCount) / float64(m.TotalOperations)

	m.HealthScore = int(m.SuccessRate * 100)
	if responseTime > 5*time.Second {
		m.HealthScore -= 10
	}
	if m.HealthScore < 0 {
		m.HealthScore = 0
	}
}
