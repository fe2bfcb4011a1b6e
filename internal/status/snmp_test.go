package status

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSession struct {
	connectErr error
	getErr     error
	packet     *gosnmp.SnmpPacket
	requested  []string
	closed     bool
}

func (s *fakeSession) Connect() error { return s.connectErr }
func (s *fakeSession) Close() error   { s.closed = true; return nil }

func (s *fakeSession) Get(oids []string) (*gosnmp.SnmpPacket, error) {
	s.requested = oids
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.packet, nil
}

func newTestFetcher(t *testing.T, session *fakeSession) *SNMPFetcher {
	t.Helper()
	f, err := NewSNMPFetcher(SNMPConfig{
		Host:      "127.0.0.1",
		Community: "public",
		OIDs: map[string]string{
			"model":  ".1.3.6.1.2.1.1.1.0",
			"uptime": "1.3.6.1.2.1.1.3.0",
			"lamp":   "1.3.6.1.4.1.122.1.1.0",
		},
	}, zap.NewNop())
	require.NoError(t, err)
	f.newSession = func(context.Context) snmpSession { return session }
	return f
}

func TestSNMPFetcherDecodesVariables(t *testing.T) {
	session := &fakeSession{packet: &gosnmp.SnmpPacket{
		Variables: []gosnmp.SnmpPDU{
			{Name: ".1.3.6.1.2.1.1.1.0", Type: gosnmp.OctetString, Value: []byte("VPL-XW5000")},
			{Name: ".1.3.6.1.2.1.1.3.0", Type: gosnmp.TimeTicks, Value: uint32(6000)},
			{Name: ".1.3.6.1.4.1.122.1.1.0", Type: gosnmp.NoSuchObject},
		},
	}}
	f := newTestFetcher(t, session)

	values, err := f.FetchStatus(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"model":  "VPL-XW5000",
		"uptime": "1m0s",
	}, values)
	assert.Equal(t, []string{"1.3.6.1.2.1.1.1.0", "1.3.6.1.2.1.1.3.0", "1.3.6.1.4.1.122.1.1.0"}, session.requested)
	assert.True(t, session.closed)
}

func TestSNMPFetcherIntegerValue(t *testing.T) {
	session := &fakeSession{packet: &gosnmp.SnmpPacket{
		Variables: []gosnmp.SnmpPDU{
			{Name: ".1.3.6.1.4.1.122.1.1.0", Type: gosnmp.Integer, Value: 1200},
		},
	}}
	f := newTestFetcher(t, session)

	values, err := f.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1200", values["lamp"])
}

func TestSNMPFetcherErrors(t *testing.T) {
	t.Run("connect", func(t *testing.T) {
		f := newTestFetcher(t, &fakeSession{connectErr: errors.New("no route")})
		_, err := f.FetchStatus(context.Background())
		assert.ErrorContains(t, err, "no route")
	})

	t.Run("get", func(t *testing.T) {
		session := &fakeSession{getErr: errors.New("request timeout")}
		f := newTestFetcher(t, session)
		_, err := f.FetchStatus(context.Background())
		assert.ErrorContains(t, err, "request timeout")
		assert.True(t, session.closed)
	})

	t.Run("agent error status", func(t *testing.T) {
		f := newTestFetcher(t, &fakeSession{packet: &gosnmp.SnmpPacket{
			Error:      gosnmp.NoSuchName,
			ErrorIndex: 1,
		}})
		_, err := f.FetchStatus(context.Background())
		assert.Error(t, err)
	})
}

func TestNewSNMPFetcherValidation(t *testing.T) {
	_, err := NewSNMPFetcher(SNMPConfig{Host: "h"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewSNMPFetcher(SNMPConfig{Host: "h", Version: "3", OIDs: map[string]string{"a": "1.3"}}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewSNMPFetcher(SNMPConfig{Host: "h", Port: 70000, OIDs: map[string]string{"a": "1.3"}}, zap.NewNop())
	assert.Error(t, err)

	f, err := NewSNMPFetcher(SNMPConfig{Host: "h", Version: "1", OIDs: map[string]string{"a": "1.3"}}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 161, f.config.Port)
	assert.Equal(t, 5*time.Second, f.config.Timeout)
}
