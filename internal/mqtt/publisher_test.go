package mqtt

import (
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
)

type fakeToken struct {
	err      error
	complete bool
	done     chan struct{}
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{err: err, complete: complete, done: make(chan struct{})}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { return t.complete }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return t.complete }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  string
}

type fakeClient struct {
	mu       sync.Mutex
	messages []published
	next     func() pahomqtt.Token
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, published{topic: topic, qos: qos, retained: retained, payload: string(payload.([]byte))})
	if c.next != nil {
		return c.next()
	}
	return newFakeToken(nil, true)
}

func TestPublisher_PublishesRetainedProperties(t *testing.T) {
	client := &fakeClient{}
	publisher, err := NewPublisher(client, "soundtouch/", 1, zerolog.Nop())
	require.NoError(t, err)

	var listener soundtouch.Listener = publisher
	listener.UpdateProperty("A1", soundtouch.PropertyVolume, 42)
	listener.UpdateProperty("A1", soundtouch.PropertyZoneInfo, "Standalone")
	listener.UpdateProperty("A1", soundtouch.PropertyPresets, []soundtouch.Preset{{ID: 7, Item: soundtouch.ContentItem{Source: "INTERNET_RADIO", ItemName: "Jazz"}}})

	require.Len(t, client.messages, 3)
	require.Equal(t, published{topic: "soundtouch/A1/volume", qos: 1, retained: true, payload: "42"}, client.messages[0])
	require.Equal(t, "Standalone", client.messages[1].payload)
	require.Contains(t, client.messages[2].payload, `"item_name":"Jazz"`)
}

func TestPublisher_InvalidQoS(t *testing.T) {
	_, err := NewPublisher(&fakeClient{}, "soundtouch", 3, zerolog.Nop())
	require.ErrorIs(t, err, ErrInvalidQoS)
}

func TestPublisher_PublishErrors(t *testing.T) {
	client := &fakeClient{next: func() pahomqtt.Token { return newFakeToken(nil, false) }}
	publisher, err := NewPublisher(client, "soundtouch", 0, zerolog.Nop())
	require.NoError(t, err)

	err = publisher.Publish("A1", soundtouch.PropertyPower, true)
	require.ErrorIs(t, err, ErrPublishFailed)

	client.next = func() pahomqtt.Token { return newFakeToken(errors.New("broker gone"), true) }
	err = publisher.Publish("A1", soundtouch.PropertyPower, true)
	require.ErrorIs(t, err, ErrPublishFailed)
	require.ErrorContains(t, err, "broker gone")

	require.NotPanics(t, func() { publisher.UpdateProperty("A1", soundtouch.PropertyPower, false) })
	publisher.Close()
}
