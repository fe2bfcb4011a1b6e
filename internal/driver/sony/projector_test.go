package sony

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adcp-service/internal/adcp"
	"adcp-service/internal/model"
)

type mockCommander struct {
	mock.Mock
}

func (m *mockCommander) Execute(ctx context.Context, command string) (string, error) {
	args := m.Called(ctx, command)
	return args.String(0), args.Error(1)
}

func (m *mockCommander) Shutdown() {
	m.Called()
}

func newTestProjector(client *mockCommander) *Projector {
	return NewProjector(client, &model.ProjectorInfo{Name: "Theater"}, zap.NewNop())
}

func TestGetPowerState(t *testing.T) {
	tests := []struct {
		response string
		want     bool
	}{
		{"power_status on", true},
		{`"on"`, true},
		{"POWER_STATUS ON", true},
		{`"standby"`, false},
		{"power_status startup", false},
	}

	for _, tt := range tests {
		t.Run(tt.response, func(t *testing.T) {
			client := &mockCommander{}
			client.On("Execute", mock.Anything, "power_status ?").Return(tt.response, nil)

			on, err := newTestProjector(client).GetPowerState(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, on)
			client.AssertExpectations(t)
		})
	}
}

func TestSetPowerStateReturnsRawResponse(t *testing.T) {
	client := &mockCommander{}
	client.On("Execute", mock.Anything, "power on").Return("ok", nil)
	client.On("Execute", mock.Anything, "power off").Return("err_cmd", nil)
	p := newTestProjector(client)

	resp, err := p.SetPowerState(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	resp, err = p.SetPowerState(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, "err_cmd", resp, "responses are not interpreted")
}

func TestErrorsArePropagatedVerbatim(t *testing.T) {
	cause := fmt.Errorf("%w: no response", adcp.ErrCommandTimeout)
	client := &mockCommander{}
	client.On("Execute", mock.Anything, "power off").Return("", cause).Once()
	p := newTestProjector(client)

	_, err := p.SetPowerState(context.Background(), false)

	assert.Equal(t, cause, err)
	client.AssertNumberOfCalls(t, "Execute", 1)
}

func TestPassthroughCommands(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		command string
		call    func(p *Projector) error
	}{
		{`input "hdmi1"`, func(p *Projector) error { return p.SetInput(ctx, `"hdmi1"`) }},
		{"muting on", func(p *Projector) error { return p.MuteAudio(ctx, true) }},
		{"volume 12", func(p *Projector) error { return p.SetVolume(ctx, 12) }},
		{"brightness 50", func(p *Projector) error { return p.SetBrightness(ctx, 50) }},
		{"contrast -3", func(p *Projector) error { return p.SetContrast(ctx, -3) }},
		{"picture_mode cinema_film1", func(p *Projector) error { return p.SetPictureMode(ctx, "cinema_film1") }},
		{"aspect normal", func(p *Projector) error { return p.SetAspectRatio(ctx, "normal") }},
		{"v_center 4", func(p *Projector) error { return p.SetScreenPosition(ctx, "4") }},
		{"v_size -2", func(p *Projector) error { return p.SetScreenSize(ctx, "-2") }},
		{"overscan off", func(p *Projector) error { return p.SetOverscan(ctx, false) }},
		{"freeze on", func(p *Projector) error { return p.Freeze(ctx, true) }},
		{"image_split off", func(p *Projector) error { return p.SetImageSplit(ctx, "off") }},
		{"ipv4_network_setting start", func(p *Projector) error { return p.StartNetworkSettings(ctx) }},
		{"ipv4_network_setting apply", func(p *Projector) error { return p.ApplyNetworkSettings(ctx) }},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			client := &mockCommander{}
			client.On("Execute", mock.Anything, tt.command).Return("ok", nil).Once()

			require.NoError(t, tt.call(newTestProjector(client)))
			client.AssertExpectations(t)
		})
	}
}

func TestLineBreaksAreRejected(t *testing.T) {
	client := &mockCommander{}
	p := newTestProjector(client)

	err := p.SetInput(context.Background(), "hdmi1\r\npower off")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = p.SetPictureMode(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = p.SetIPv4Address(context.Background(), "192.168.0.10", "255.255.255.0\n", "192.168.0.1")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	client.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestSetIPv4Address(t *testing.T) {
	client := &mockCommander{}
	client.On("Execute", mock.Anything, mock.Anything).Return("ok", nil)

	err := newTestProjector(client).SetIPv4Address(context.Background(), "192.168.0.10", "255.255.255.0", "192.168.0.1")
	require.NoError(t, err)

	var sent []string
	for _, call := range client.Calls {
		sent = append(sent, call.Arguments.String(1))
	}
	assert.Equal(t, []string{
		"ipv4_ip_address 192.168.0.10",
		"ipv4_sub_net_mask 255.255.255.0",
		"ipv4_default_gateway 192.168.0.1",
		"ipv4_network_setting apply",
	}, sent)
}

func TestSetIPv4AddressStopsAtFirstFailure(t *testing.T) {
	client := &mockCommander{}
	client.On("Execute", mock.Anything, "ipv4_ip_address 192.168.0.10").Return("ok", nil)
	client.On("Execute", mock.Anything, "ipv4_sub_net_mask 255.255.255.0").Return("", adcp.ErrConnectionLost)

	err := newTestProjector(client).SetIPv4Address(context.Background(), "192.168.0.10", "255.255.255.0", "192.168.0.1")

	assert.ErrorIs(t, err, adcp.ErrConnectionLost)
	client.AssertNumberOfCalls(t, "Execute", 2)
}

func TestExecuteOperation(t *testing.T) {
	tests := []struct {
		name     string
		opType   model.OperationType
		data     model.JSONObject
		commands []string
		wantData map[string]interface{}
	}{
		{
			name:     "power status",
			opType:   model.OperationTypePowerStatus,
			commands: []string{"power_status ?"},
			wantData: map[string]interface{}{"on": true},
		},
		{
			name:     "power on",
			opType:   model.OperationTypePower,
			data:     model.JSONObject{"on": true},
			commands: []string{"power on"},
			wantData: map[string]interface{}{"on": true},
		},
		{
			name:     "volume from json number",
			opType:   model.OperationTypeVolume,
			data:     model.JSONObject{"level": float64(20)},
			commands: []string{"volume 20"},
		},
		{
			name:     "input",
			opType:   model.OperationTypeInput,
			data:     model.JSONObject{"input": "hdmi2"},
			commands: []string{"input hdmi2"},
		},
		{
			name:   "ipv4 address",
			opType: model.OperationTypeIPv4Address,
			data: model.JSONObject{
				"ip_address":  "10.0.0.5",
				"subnet_mask": "255.0.0.0",
				"gateway":     "10.0.0.1",
			},
			commands: []string{
				"ipv4_ip_address 10.0.0.5",
				"ipv4_sub_net_mask 255.0.0.0",
				"ipv4_default_gateway 10.0.0.1",
				"ipv4_network_setting apply",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockCommander{}
			client.On("Execute", mock.Anything, mock.Anything).Return("power_status on", nil)

			result, err := newTestProjector(client).ExecuteOperation(context.Background(), model.NewOperation(tt.opType, tt.data))
			require.NoError(t, err)

			assert.True(t, result.Success)
			assert.Equal(t, tt.commands, result.Commands)
			assert.Equal(t, "power_status on", result.Response)
			assert.Equal(t, tt.wantData, result.Data)
			client.AssertNumberOfCalls(t, "Execute", len(tt.commands))
		})
	}
}

func TestExecuteOperationRejectsBadInput(t *testing.T) {
	client := &mockCommander{}
	p := newTestProjector(client)

	_, err := p.ExecuteOperation(context.Background(), model.NewOperation(model.OperationTypeVolume, model.JSONObject{"level": "loud"}))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = p.ExecuteOperation(context.Background(), model.NewOperation(model.OperationTypeFreeze, nil))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = p.ExecuteOperation(context.Background(), model.NewOperation("LENS_SHIFT", nil))
	assert.ErrorIs(t, err, ErrUnsupportedOperation)

	client.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestHealthMetrics(t *testing.T) {
	client := &mockCommander{}
	client.On("Execute", mock.Anything, "freeze on").Return("ok", nil)
	client.On("Execute", mock.Anything, "freeze off").Return("", adcp.ErrCommandTimeout)
	p := newTestProjector(client)

	require.NoError(t, p.Freeze(context.Background(), true))
	require.Error(t, p.Freeze(context.Background(), false))

	metrics := p.GetHealthMetrics()
	assert.Equal(t, int64(2), metrics.TotalOperations)
	assert.Equal(t, int64(1), metrics.ErrorCount)
	assert.InDelta(t, 0.5, metrics.SuccessRate, 0.001)
	assert.Equal(t, 50, metrics.HealthScore)
	assert.NotNil(t, metrics.LastSuccessTime)
	assert.NotNil(t, metrics.LastErrorTime)
}

func TestShutdownReleasesSession(t *testing.T) {
	client := &mockCommander{}
	client.On("Shutdown").Return().Once()

	newTestProjector(client).Shutdown()
	client.AssertExpectations(t)
}

func TestDeviceInfoDefaults(t *testing.T) {
	info := newTestProjector(&mockCommander{}).GetDeviceInfo()

	assert.Equal(t, "Theater", info.Name)
	assert.Equal(t, Manufacturer, info.Manufacturer)
	assert.Equal(t, DefaultModel, info.Model)
	assert.Equal(t, model.BrandSony, info.Brand)
}

// statefulProjector answers power commands like a real unit would
func statefulProjector(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	var mu sync.Mutex
	power := "standby"

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				reader := bufio.NewReader(conn)
				for {
					line, err := reader.ReadString('\n')
					if err != nil {
						return
					}
					cmd := strings.TrimSpace(line)

					mu.Lock()
					reply := "ok"
					switch cmd {
					case "power on":
						power = "on"
					case "power off":
						power = "standby"
					case "power_status ?":
						reply = "power_status " + power
					default:
						reply = "err_cmd"
					}
					mu.Unlock()
					conn.Write([]byte(reply + "\r\n"))
				}
			}(conn)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func TestPowerRoundTrip(t *testing.T) {
	host, port := statefulProjector(t)
	client := adcp.NewClient(adcp.Config{
		Host:           host,
		Port:           port,
		ConnectTimeout: time.Second,
		CommandTimeout: time.Second,
	}, zap.NewNop())
	p := NewProjector(client, &model.ProjectorInfo{Name: "Theater"}, zap.NewNop())
	defer p.Shutdown()

	ctx := context.Background()

	on, err := p.GetPowerState(ctx)
	require.NoError(t, err)
	assert.False(t, on)

	_, err = p.SetPowerState(ctx, true)
	require.NoError(t, err)

	on, err = p.GetPowerState(ctx)
	require.NoError(t, err)
	assert.True(t, on)

	p.Shutdown()
	assert.Equal(t, adcp.StateDisconnected, client.State())
}
