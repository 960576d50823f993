package devices

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/strefethen/soundtouch-hub-go/internal/audit"
	"github.com/strefethen/soundtouch-hub-go/internal/config"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch/gabbo"
)

// Service owns every configured device and is the zone registry they share.
type Service struct {
	opts     Options
	listener soundtouch.Listener
	recorder Recorder
	logger   zerolog.Logger

	mu      sync.RWMutex
	devices map[string]*Device
	order   []string
}

// NewService creates an empty service. listener receives every property
// update; recorder may be nil.
func NewService(opts Options, listener soundtouch.Listener, recorder Recorder, logger zerolog.Logger) *Service {
	if opts.Dial == nil {
		opts.Dial = dialGabbo
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		opts:     opts,
		listener: listener,
		recorder: recorder,
		logger:   logger.With().Str("component", "devices").Logger(),
		devices:  make(map[string]*Device),
	}
}

// Add registers a device. Devices must be added before Run.
func (s *Service) Add(cfg config.DeviceConfig) (*Device, error) {
	cfg.ID = strings.ToUpper(strings.TrimSpace(cfg.ID))
	if cfg.ID == "" || cfg.Host == "" {
		return nil, fmt.Errorf("device needs an id and a host")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.devices[cfg.ID]; exists {
		return nil, fmt.Errorf("device %s already registered", cfg.ID)
	}

	if s.opts.PresetDir != "" {
		if err := os.MkdirAll(s.opts.PresetDir, 0o755); err != nil {
			return nil, fmt.Errorf("create preset dir: %w", err)
		}
	}
	logger := s.logger.With().Str("device", cfg.ID).Logger()
	presets := soundtouch.NewPresetStore(s.presetPath(cfg.ID), logger)

	port := cfg.Port
	if port == 0 {
		port = s.opts.WSPort
	}
	device := &Device{
		config:   cfg,
		presets:  presets,
		recorder: s.recorder,
		logger:   logger,
	}
	device.conn = s.opts.Dial(gabbo.Config{
		Host:         cfg.Host,
		Port:         port,
		ReconnectMin: s.opts.ReconnectMin,
		ReconnectMax: s.opts.ReconnectMax,
	}, gabbo.Handlers{
		OnOpen:    device.onOpen,
		OnMessage: device.onMessage,
		OnClose:   device.onClose,
	}, logger)
	device.exec = soundtouch.NewExecutor(soundtouch.ExecutorConfig{
		DeviceID:  cfg.ID,
		Name:      cfg.Name,
		IPAddress: cfg.Host,
		Session:   device.conn,
		Listener:  s.listener,
		Registry:  s,
		Presets:   presets,
	}, logger)
	device.parser = soundtouch.NewResponseParser(device.exec, logger)

	s.devices[cfg.ID] = device
	s.order = append(s.order, cfg.ID)
	logger.Info().Str("host", cfg.Host).Int("port", port).Msg("Device registered")
	return device, nil
}

func (s *Service) presetPath(id string) string {
	if s.opts.PresetDir == "" {
		return ""
	}
	return filepath.Join(s.opts.PresetDir, id+".presets")
}

// List returns the devices in registration order.
func (s *Service) List() []*Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Device, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.devices[id])
	}
	return result
}

// Run keeps every device connection alive until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	devices := s.List()
	group, groupCtx := errgroup.WithContext(ctx)
	for _, device := range devices {
		device := device
		group.Go(func() error {
			err := device.conn.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	s.logger.Info().Int("count", len(devices)).Msg("Device sessions started")
	return group.Wait()
}

// SchedulePoll registers a periodic info refresh of every connected device.
func (s *Service) SchedulePoll(scheduler *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := scheduler.AddFunc(spec, s.Poll)
	if err != nil {
		return 0, fmt.Errorf("schedule device poll %q: %w", spec, err)
	}
	s.logger.Info().Str("schedule", spec).Msg("Device poll scheduled")
	return id, nil
}

// Poll asks every connected device for a full state refresh.
func (s *Service) Poll() {
	for _, device := range s.List() {
		if device.Connected() {
			device.exec.RequestInfo()
		}
	}
}

// Apply runs fn against a connected device and records the outcome.
func (s *Service) Apply(meta CommandMeta, device *Device, command string, payload map[string]any, fn func(exec *soundtouch.Executor) error) error {
	var err error
	if !device.Connected() {
		err = ErrDeviceOffline
	} else {
		err = fn(device.exec)
	}

	input := audit.WriteEventInput{
		Type:      audit.EventDeviceCommand,
		RequestID: meta.RequestID,
		ClientID:  meta.ClientID,
		DeviceID:  device.ID(),
		Command:   command,
		Message:   "Command sent",
		Payload:   meta.payload(payload),
	}
	if err != nil {
		input.Type = audit.EventDeviceCommandFailed
		input.Level = audit.EventLevelWarn
		input.Message = err.Error()
		device.logger.Warn().Err(err).Str("command", command).Msg("Device command failed")
	}
	s.recorder.Record(input)
	return err
}

// Close releases the preset stores.
func (s *Service) Close() error {
	var errs []error
	for _, device := range s.List() {
		if err := device.presets.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close presets for %s: %w", device.ID(), err))
		}
	}
	return errors.Join(errs...)
}
