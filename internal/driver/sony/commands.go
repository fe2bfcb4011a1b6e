// internal/driver/sony/commands.go
package sony

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"adcp-service/internal/model"
)

var (
	// ErrInvalidArgument is returned for arguments that cannot be put on the
	// wire as a single command line
	ErrInvalidArgument = errors.New("invalid command argument")
	// ErrUnsupportedOperation is returned for operation types the driver does not know
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// ADCP command keywords understood by Sony VPL projectors
const (
	KeywordPowerStatus    = "power_status"
	KeywordPower          = "power"
	KeywordInput          = "input"
	KeywordMuting         = "muting"
	KeywordVolume         = "volume"
	KeywordBrightness     = "brightness"
	KeywordContrast       = "contrast"
	KeywordPictureMode    = "picture_mode"
	KeywordAspect         = "aspect"
	KeywordVCenter        = "v_center"
	KeywordVSize          = "v_size"
	KeywordOverscan       = "overscan"
	KeywordFreeze         = "freeze"
	KeywordImageSplit     = "image_split"
	KeywordNetworkSetting = "ipv4_network_setting"
	KeywordIPAddress      = "ipv4_ip_address"
	KeywordSubnetMask     = "ipv4_sub_net_mask"
	KeywordGateway        = "ipv4_default_gateway"
)

const (
	queryPowerStatus = KeywordPowerStatus + " ?"
	networkStart     = KeywordNetworkSetting + " start"
	networkApply     = KeywordNetworkSetting + " apply"
)

// valueCommand formats "<keyword> <arg>". A CR or LF in arg would put a
// second command on the wire behind a single queue entry.
func valueCommand(keyword, arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("%w: %s needs a value", ErrInvalidArgument, keyword)
	}
	if strings.ContainsAny(arg, "\r\n") {
		return "", fmt.Errorf("%w: %s value %q contains a line break", ErrInvalidArgument, keyword, arg)
	}
	return keyword + " " + arg, nil
}

func switchCommand(keyword string, on bool) string {
	if on {
		return keyword + " on"
	}
	return keyword + " off"
}

func levelCommand(keyword string, level int) string {
	return keyword + " " + strconv.Itoa(level)
}

// ipv4Commands is the address change sequence, applied at the end
func ipv4Commands(ipAddress, subnetMask, gateway string) ([]string, error) {
	commands := make([]string, 0, 4)
	for _, step := range []struct{ keyword, value string }{
		{KeywordIPAddress, ipAddress},
		{KeywordSubnetMask, subnetMask},
		{KeywordGateway, gateway},
	} {
		cmd, err := valueCommand(step.keyword, step.value)
		if err != nil {
			return nil, err
		}
		commands = append(commands, cmd)
	}
	return append(commands, networkApply), nil
}

// operationCommands translates an operation into the command lines it sends
func operationCommands(op *model.Operation) ([]string, error) {
	data := op.OperationData

	switch op.OperationType {
	case model.OperationTypePowerStatus:
		return []string{queryPowerStatus}, nil
	case model.OperationTypeNetworkStart:
		return []string{networkStart}, nil
	case model.OperationTypeNetworkApply:
		return []string{networkApply}, nil

	case model.OperationTypePower:
		return switchOperation(op, KeywordPower)
	case model.OperationTypeMute:
		return switchOperation(op, KeywordMuting)
	case model.OperationTypeOverscan:
		return switchOperation(op, KeywordOverscan)
	case model.OperationTypeFreeze:
		return switchOperation(op, KeywordFreeze)

	case model.OperationTypeVolume:
		return levelOperation(op, KeywordVolume)
	case model.OperationTypeBrightness:
		return levelOperation(op, KeywordBrightness)
	case model.OperationTypeContrast:
		return levelOperation(op, KeywordContrast)

	case model.OperationTypeInput:
		return valueOperation(op, KeywordInput, "input")
	case model.OperationTypePictureMode:
		return valueOperation(op, KeywordPictureMode, "mode")
	case model.OperationTypeAspectRatio:
		return valueOperation(op, KeywordAspect, "aspect")
	case model.OperationTypeScreenPosition:
		return valueOperation(op, KeywordVCenter, "position")
	case model.OperationTypeScreenSize:
		return valueOperation(op, KeywordVSize, "size")
	case model.OperationTypeImageSplit:
		return valueOperation(op, KeywordImageSplit, "mode")

	case model.OperationTypeIPv4Address:
		ip, _ := data.StringField("ip_address")
		mask, _ := data.StringField("subnet_mask")
		gateway, _ := data.StringField("gateway")
		return ipv4Commands(ip, mask, gateway)
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOperation, op.OperationType)
}

func switchOperation(op *model.Operation, keyword string) ([]string, error) {
	on, ok := op.OperationData.BoolField("on")
	if !ok {
		return nil, fmt.Errorf("%w: %s requires boolean field \"on\"", ErrInvalidArgument, op.OperationType)
	}
	return []string{switchCommand(keyword, on)}, nil
}

func levelOperation(op *model.Operation, keyword string) ([]string, error) {
	level, ok := op.OperationData.IntField("level")
	if !ok {
		return nil, fmt.Errorf("%w: %s requires integer field \"level\"", ErrInvalidArgument, op.OperationType)
	}
	return []string{levelCommand(keyword, level)}, nil
}

func valueOperation(op *model.Operation, keyword, field string) ([]string, error) {
	value, ok := op.OperationData.StringField(field)
	if !ok {
		return nil, fmt.Errorf("%w: %s requires string field %q", ErrInvalidArgument, op.OperationType, field)
	}
	cmd, err := valueCommand(keyword, value)
	if err != nil {
		return nil, err
	}
	return []string{cmd}, nil
}

// parsePowerState reads a power_status response. Any response mentioning
// "on" counts as powered.
func parsePowerState(response string) bool {
	return strings.Contains(strings.ToLower(response), "on")
}
