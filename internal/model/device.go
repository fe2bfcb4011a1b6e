// internal/model/device.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ConnectionType represents how the projector is reached
type ConnectionType string

const (
	ConnectionTypeTCP ConnectionType = "TCP"
)

// DeviceBrand represents supported projector brands
type DeviceBrand string

const (
	BrandSony    DeviceBrand = "SONY"
	BrandGeneric DeviceBrand = "GENERIC"
)

// DeviceType represents the type of device
type DeviceType string

const (
	DeviceTypeProjector DeviceType = "PROJECTOR"
)

// JSONObject type for PostgreSQL JSONB objects
type JSONObject map[string]interface{}

func (j *JSONObject) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONObject", value)
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONObject) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// StringField returns the named field as a string, or "" if absent
func (j JSONObject) StringField(key string) (string, bool) {
	v, ok := j[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// BoolField returns the named field as a bool
func (j JSONObject) BoolField(key string) (bool, bool) {
	v, ok := j[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// IntField returns the named field as an int. JSON numbers decode as float64, so
// whole floats are accepted.
func (j JSONObject) IntField(key string) (int, bool) {
	switch v := j[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	default:
		return 0, false
	}
}

// ProjectorInfo describes the projector being controlled
type ProjectorInfo struct {
	Name           string         `json:"name"`
	Manufacturer   string         `json:"manufacturer"`
	Brand          DeviceBrand    `json:"brand"`
	Model          string         `json:"model"`
	SerialNumber   string         `json:"serial_number,omitempty"`
	Host           string         `json:"host"`
	Port           int            `json:"port"`
	ConnectionType ConnectionType `json:"connection_type"`
	UseAuth        bool           `json:"use_auth"`
}
