// internal/status/snmp.go
package status

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"
)

// Fetcher reads a named set of status values from the projector
type Fetcher interface {
	FetchStatus(ctx context.Context) (map[string]string, error)
}

// SNMPConfig is what the fetcher needs to reach the management agent
type SNMPConfig struct {
	Host      string
	Port      int
	Community string
	Version   string // "1" or "2c"
	Timeout   time.Duration
	Retries   int
	// OIDs maps a status name to the object it is read from
	OIDs map[string]string
}

// snmpSession is the part of gosnmp used by the fetcher
type snmpSession interface {
	Connect() error
	Get(oids []string) (*gosnmp.SnmpPacket, error)
	Close() error
}

type goSNMPSession struct {
	*gosnmp.GoSNMP
}

func (s goSNMPSession) Close() error {
	if s.Conn == nil {
		return nil
	}
	return s.Conn.Close()
}

// SNMPFetcher polls status values over SNMP. It owns no long-lived socket;
// each fetch opens and closes its own UDP session.
type SNMPFetcher struct {
	config     SNMPConfig
	oids       []string
	names      map[string]string
	logger     *zap.Logger
	newSession func(ctx context.Context) snmpSession
}

// NewSNMPFetcher creates a fetcher for the configured OIDs
func NewSNMPFetcher(config SNMPConfig, logger *zap.Logger) (*SNMPFetcher, error) {
	if len(config.OIDs) == 0 {
		return nil, errors.New("no OIDs configured")
	}
	if config.Port == 0 {
		config.Port = 161
	}
	if config.Port < 0 || config.Port > 65535 {
		return nil, fmt.Errorf("snmp port %d out of range", config.Port)
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	version, err := parseVersion(config.Version)
	if err != nil {
		return nil, err
	}

	f := &SNMPFetcher{
		config: config,
		names:  make(map[string]string, len(config.OIDs)),
		logger: logger.With(
			zap.String("component", "snmp"),
			zap.String("host", config.Host),
			zap.Int("port", config.Port),
		),
	}
	for name, oid := range config.OIDs {
		oid = normalizeOID(oid)
		f.oids = append(f.oids, oid)
		f.names[oid] = name
	}
	sort.Strings(f.oids)

	f.newSession = func(ctx context.Context) snmpSession {
		return goSNMPSession{&gosnmp.GoSNMP{
			Target:    config.Host,
			Port:      uint16(config.Port),
			Community: config.Community,
			Version:   version,
			Timeout:   config.Timeout,
			Retries:   config.Retries,
			Context:   ctx,
		}}
	}
	return f, nil
}

// FetchStatus reads every configured OID. Variables the agent reports as
// missing are logged and left out of the result.
func (f *SNMPFetcher) FetchStatus(ctx context.Context) (map[string]string, error) {
	session := f.newSession(ctx)
	if err := session.Connect(); err != nil {
		return nil, fmt.Errorf("failed to open SNMP session: %w", err)
	}
	defer session.Close()

	packet, err := session.Get(f.oids)
	if err != nil {
		f.logger.Error("SNMP error", zap.Error(err))
		return nil, fmt.Errorf("SNMP get failed: %w", err)
	}
	if packet.Error != gosnmp.NoError {
		return nil, fmt.Errorf("SNMP get failed: %s at index %d", packet.Error, packet.ErrorIndex)
	}

	status := make(map[string]string, len(packet.Variables))
	for _, variable := range packet.Variables {
		oid := normalizeOID(variable.Name)
		name, ok := f.names[oid]
		if !ok {
			name = oid
		}

		switch variable.Type {
		case gosnmp.NoSuchObject, gosnmp.NoSuchInstance, gosnmp.EndOfMibView:
			f.logger.Error("SNMP varbind error",
				zap.String("oid", oid),
				zap.String("type", variable.Type.String()),
			)
			continue
		}
		status[name] = formatValue(variable)
	}
	return status, nil
}

func parseVersion(version string) (gosnmp.SnmpVersion, error) {
	switch version {
	case "", "2c":
		return gosnmp.Version2c, nil
	case "1":
		return gosnmp.Version1, nil
	default:
		return 0, fmt.Errorf("unsupported SNMP version %q", version)
	}
}

func normalizeOID(oid string) string {
	return strings.TrimPrefix(strings.TrimSpace(oid), ".")
}

func formatValue(variable gosnmp.SnmpPDU) string {
	switch v := variable.Value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	case nil:
		return ""
	}
	if variable.Type == gosnmp.TimeTicks {
		// TimeTicks are hundredths of a second
		return (time.Duration(gosnmp.ToBigInt(variable.Value).Int64()) * 10 * time.Millisecond).String()
	}
	return fmt.Sprint(variable.Value)
}
