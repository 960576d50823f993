package soundtouch

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const (
	testDeviceID = "A0B1C2D3E4F5"
	testDeviceIP = "10.0.0.5"
)

type fakeSession struct {
	mu       sync.Mutex
	messages []string
	errs     []error
	failWith error
}

func (s *fakeSession) SendText(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeSession) HandleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *fakeSession) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func (s *fakeSession) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
	s.errs = nil
}

// urls returns the url attribute of every sent message.
func (s *fakeSession) urls() []string {
	var urls []string
	for _, msg := range s.sent() {
		start := strings.Index(msg, `url="`)
		if start < 0 {
			continue
		}
		rest := msg[start+len(`url="`):]
		urls = append(urls, rest[:strings.Index(rest, `"`)])
	}
	return urls
}

type update struct {
	deviceID string
	property Property
	value    any
}

type recordingListener struct {
	mu      sync.Mutex
	updates []update
}

func (l *recordingListener) UpdateProperty(deviceID string, property Property, value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = append(l.updates, update{deviceID: deviceID, property: property, value: value})
}

func (l *recordingListener) values(property Property) []any {
	l.mu.Lock()
	defer l.mu.Unlock()
	var values []any
	for _, u := range l.updates {
		if u.property == property {
			values = append(values, u.value)
		}
	}
	return values
}

func (l *recordingListener) last(property Property) any {
	values := l.values(property)
	if len(values) == 0 {
		return nil
	}
	return values[len(values)-1]
}

func (l *recordingListener) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updates = nil
}

type fakePeer struct {
	id   string
	name string
	ip   string

	mu      sync.Mutex
	removed []string
}

func (p *fakePeer) DeviceID() string  { return p.id }
func (p *fakePeer) Name() string      { return p.name }
func (p *fakePeer) IPAddress() string { return p.ip }

func (p *fakePeer) RemoveDeviceFromZone(peer ZonePeer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, peer.DeviceID())
	return nil
}

func (p *fakePeer) removedIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.removed...)
}

type fakeRegistry struct {
	peers map[string]ZonePeer
}

func newFakeRegistry(peers ...ZonePeer) *fakeRegistry {
	r := &fakeRegistry{peers: make(map[string]ZonePeer)}
	for _, peer := range peers {
		r.add(peer)
	}
	return r
}

func (r *fakeRegistry) add(peer ZonePeer) {
	r.peers[strings.ToLower(peer.DeviceID())] = peer
}

func (r *fakeRegistry) Lookup(identifier string) (ZonePeer, error) {
	if peer, ok := r.peers[strings.ToLower(identifier)]; ok {
		return peer, nil
	}
	return nil, ErrDeviceNotFound
}

type testRig struct {
	exec     *Executor
	session  *fakeSession
	listener *recordingListener
	registry *fakeRegistry
	store    *PresetStore
	dir      string
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	dir := t.TempDir()
	store := NewPresetStore(filepath.Join(dir, "presets.txt"), zerolog.Nop())
	t.Cleanup(func() { store.Close() })

	rig := &testRig{
		session:  &fakeSession{},
		listener: &recordingListener{},
		registry: newFakeRegistry(),
		store:    store,
		dir:      dir,
	}
	rig.exec = NewExecutor(ExecutorConfig{
		DeviceID:  testDeviceID,
		Name:      "Kitchen",
		IPAddress: testDeviceIP,
		Session:   rig.session,
		Listener:  rig.listener,
		Registry:  rig.registry,
		Presets:   store,
	}, zerolog.Nop())
	rig.exec.SetOnline(true)
	rig.session.reset()
	rig.listener.reset()
	return rig
}

func (r *testRig) parse(t *testing.T, msg string) {
	t.Helper()
	parser := NewResponseParser(r.exec, zerolog.Nop())
	require.NoError(t, parser.Parse([]byte(msg)))
}

func radioItem(name string) ContentItem {
	return ContentItem{
		Source:     "INTERNET_RADIO",
		Location:   "/stations/" + strings.ToLower(name),
		ItemName:   name,
		Presetable: true,
	}
}

var errSocketClosed = errors.New("socket closed")
