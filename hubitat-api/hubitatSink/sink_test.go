package hubitatSink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatStructs"
)

var testDevices = map[string]hubitatStructs.NormalizedDevice{
	"7": {HubId: "hub-1", DeviceId: "7", Name: "Living Room Lamp", Kind: "switch",
		Attributes: map[string]string{"switch": "on", "level": "50", "power": "12.5"}},
	"8": {HubId: "hub-1", DeviceId: "8", Name: "Door", Kind: "contact",
		Attributes: map[string]string{"contact": "open", "bad": "NaN"}},
}

type MockRecordWriter struct {
	mock.Mock
}

func (m *MockRecordWriter) WriteRecord(ctx context.Context, line ...string) error {
	args := m.Called(ctx, line)
	return args.Error(0)
}

func TestLines(t *testing.T) {
	ts := time.Unix(0, 1700000000000000000)

	lines := Lines(testDevices, ts)

	assert.Equal(t, []string{
		`hubitat_level,deviceId=7,name=Living\ Room\ Lamp,kind=switch value=50 1700000000000000000`,
		`hubitat_power,deviceId=7,name=Living\ Room\ Lamp,kind=switch value=12.5 1700000000000000000`,
	}, lines)
}

func TestEscapeTag(t *testing.T) {
	assert.Equal(t, `a\,b\=c\ d`, escapeTag("a,b=c d"))
	assert.Equal(t, "none", escapeTag(""))
}

func TestInfluxSink_Write(t *testing.T) {
	writer := new(MockRecordWriter)
	s := NewInfluxSinkWithWriter(writer, zap.NewNop().Sugar())
	s.now = func() time.Time { return time.Unix(1, 0) }
	ctx := context.Background()

	writer.On("WriteRecord", ctx, mock.MatchedBy(func(lines []string) bool { return len(lines) == 2 })).Return(nil).Once()
	require.NoError(t, s.Write(ctx, testDevices))

	writer.On("WriteRecord", ctx, mock.Anything).Return(errors.New("unauthorized")).Once()
	err := s.Write(ctx, testDevices)
	assert.ErrorContains(t, err, "unauthorized")

	assert.NoError(t, s.Write(ctx, map[string]hubitatStructs.NormalizedDevice{"8": testDevices["8"]}))
	writer.AssertNumberOfCalls(t, "WriteRecord", 2)
}

type MockToken struct {
	mock.Mock
}

func (m *MockToken) Wait() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockToken) WaitTimeout(timeout time.Duration) bool {
	args := m.Called(timeout)
	return args.Bool(0)
}

func (m *MockToken) Done() <-chan struct{} {
	args := m.Called()
	return args.Get(0).(<-chan struct{})
}

func (m *MockToken) Error() error {
	args := m.Called()
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	args := m.Called(topic, qos, retained, payload)
	return args.Get(0).(mqtt.Token)
}

func TestMQTTSink_Publish(t *testing.T) {
	ok := new(MockToken)
	ok.On("WaitTimeout", publishTimeout).Return(true)
	ok.On("Error").Return(nil)

	pub := new(MockPublisher)
	var payloads [][]byte
	pub.On("Publish", "hubitat/hub-1/7", byte(1), true, mock.Anything).Run(func(args mock.Arguments) {
		payloads = append(payloads, args.Get(3).([]byte))
	}).Return(ok)
	pub.On("Publish", "hubitat/hub-1/8", byte(1), true, mock.Anything).Return(ok)

	s := NewMQTTSink(pub, "hubitat/", 1, zap.NewNop().Sugar())
	require.NoError(t, s.Publish(testDevices))

	pub.AssertExpectations(t)
	require.Len(t, payloads, 1)
	var got hubitatStructs.NormalizedDevice
	require.NoError(t, json.Unmarshal(payloads[0], &got))
	assert.Equal(t, testDevices["7"], got)
}

func TestMQTTSink_PublishCollectsErrors(t *testing.T) {
	timeout := new(MockToken)
	timeout.On("WaitTimeout", publishTimeout).Return(false)
	failed := new(MockToken)
	failed.On("WaitTimeout", publishTimeout).Return(true)
	failed.On("Error").Return(errors.New("not connected"))

	pub := new(MockPublisher)
	pub.On("Publish", "hubitat/hub-1/7", byte(0), true, mock.Anything).Return(timeout)
	pub.On("Publish", "hubitat/hub-1/8", byte(0), true, mock.Anything).Return(failed)

	s := NewMQTTSink(pub, "hubitat", 0, zap.NewNop().Sugar())
	err := s.Publish(testDevices)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "publishing hubitat/hub-1/7: timeout")
	assert.Contains(t, err.Error(), "publishing hubitat/hub-1/8: not connected")
}

func TestMQTTSink_Topic(t *testing.T) {
	s := NewMQTTSink(nil, "home/hubitat", 0, zap.NewNop().Sugar())

	assert.Equal(t, "home/hubitat/hub/a_b_c", s.Topic(hubitatStructs.NormalizedDevice{DeviceId: "a/b+c"}))
}
