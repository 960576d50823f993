package soundtouch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/rs/zerolog"
)

// HardwarePresetCount is the number of preset buttons on the device. Those
// slots are owned by the device and never written to the preset file.
const HardwarePresetCount = 6

const presetFields = 6

// PresetStore keeps at most one content item per preset id. User presets
// (ids above HardwarePresetCount) are mirrored to a flat file; every mutation
// rewrites the whole file.
type PresetStore struct {
	path   string
	logger zerolog.Logger

	mu     sync.Mutex
	order  []int
	items  map[int]ContentItem
	closed bool

	fileMu sync.Mutex

	queue chan struct{}
	done  chan struct{}
}

// NewPresetStore loads the preset file at path. A missing or unreadable file
// yields an empty store; an empty path keeps presets in memory only and starts
// no writer.
func NewPresetStore(path string, logger zerolog.Logger) *PresetStore {
	s := &PresetStore{
		path:   path,
		logger: logger.With().Str("component", "presets").Logger(),
		items:  make(map[int]ContentItem),
		queue:  make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	if path == "" {
		close(s.done)
		return s
	}
	if err := s.load(); err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("Cannot read preset file, starting empty")
		s.order = nil
		s.items = make(map[int]ContentItem)
	}
	go s.writeLoop()
	return s
}

// Put stores item under id, replacing any previous entry. The in-memory
// state is kept even when the file rewrite fails.
func (s *PresetStore) Put(id int, item ContentItem) error {
	if err := s.set(id, item); err != nil {
		return err
	}
	if id <= HardwarePresetCount {
		return nil
	}
	if err := s.flush(); err != nil {
		return &PresetError{ID: id, Err: err}
	}
	return nil
}

// PutAsync stores item under id and queues the file rewrite on the store's
// writer goroutine. Write failures are logged.
func (s *PresetStore) PutAsync(id int, item ContentItem) error {
	if err := s.set(id, item); err != nil {
		return err
	}
	if id > HardwarePresetCount {
		s.schedule()
	}
	return nil
}

// Get returns the item stored under id.
func (s *PresetStore) Get(id int) (ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[id]
	if !ok {
		return ContentItem{}, &PresetError{ID: id, Err: ErrNoPresetFound}
	}
	return item, nil
}

// All returns every preset in insertion order.
func (s *PresetStore) All() []Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	presets := make([]Preset, 0, len(s.order))
	for _, id := range s.order {
		presets = append(presets, Preset{ID: id, Item: s.items[id]})
	}
	return presets
}

// RemoveHardware drops the device-owned slots so a fresh preset listing can
// repopulate them.
func (s *PresetStore) RemoveHardware() {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.order[:0]
	for _, id := range s.order {
		if id <= HardwarePresetCount {
			delete(s.items, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
}

// Close stops the writer goroutine after any queued rewrite has finished.
func (s *PresetStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *PresetStore) set(id int, item ContentItem) error {
	if id < 1 {
		return &PresetError{ID: id, Err: ErrInvalidPresetID}
	}
	if !item.Presetable {
		return &PresetError{ID: id, Err: ErrContentItemNotPresetable}
	}
	item.PresetID = id

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		s.order = append(s.order, id)
	}
	s.items[id] = item
	return nil
}

func (s *PresetStore) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.path == "" {
		return
	}
	select {
	case s.queue <- struct{}{}:
	default:
	}
}

func (s *PresetStore) writeLoop() {
	defer close(s.done)
	for range s.queue {
		if err := s.flush(); err != nil {
			s.logger.Error().Err(err).Str("path", s.path).Msg("Failed to write preset file")
		}
	}
}

func (s *PresetStore) userPresets() []Preset {
	s.mu.Lock()
	defer s.mu.Unlock()
	presets := make([]Preset, 0, len(s.order))
	for _, id := range s.order {
		if id > HardwarePresetCount {
			presets = append(presets, Preset{ID: id, Item: s.items[id]})
		}
	}
	return presets
}

// flush rewrites the preset file through a temp file and rename. The snapshot
// is taken under fileMu so the last rename always carries the latest state.
func (s *PresetStore) flush() error {
	if s.path == "" {
		return nil
	}
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	presets := s.userPresets()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPresetPersistence, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPresetPersistence, err)
	}
	tmpPath := tmp.Name()

	writer := csv.NewWriter(tmp)
	writer.Comma = ';'
	for _, preset := range presets {
		if err := writer.Write(presetRecord(preset)); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("%w: %v", ErrPresetPersistence, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrPresetPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrPresetPersistence, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", ErrPresetPersistence, err)
	}
	return nil
}

func (s *PresetStore) load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open preset file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = ';'
	reader.FieldsPerRecord = presetFields

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				s.logger.Warn().Err(err).Str("path", s.path).Msg("Skipping malformed preset line")
				continue
			}
			return fmt.Errorf("read preset file: %w", err)
		}

		preset, err := parsePresetRecord(record)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Skipping malformed preset line")
			continue
		}
		if preset.ID <= HardwarePresetCount {
			s.logger.Warn().Int("preset_id", preset.ID).Msg("Ignoring hardware preset in preset file")
			continue
		}
		if _, exists := s.items[preset.ID]; !exists {
			s.order = append(s.order, preset.ID)
		}
		s.items[preset.ID] = preset.Item
	}
	return nil
}

func presetRecord(preset Preset) []string {
	return []string{
		strconv.Itoa(preset.ID),
		preset.Item.Source,
		preset.Item.SourceAccount,
		preset.Item.Location,
		preset.Item.ItemName,
		strconv.Itoa(preset.Item.Unused),
	}
}

func parsePresetRecord(record []string) (Preset, error) {
	id, err := strconv.Atoi(record[0])
	if err != nil {
		return Preset{}, fmt.Errorf("preset id %q: %w", record[0], err)
	}
	unused, err := strconv.Atoi(record[5])
	if err != nil {
		return Preset{}, fmt.Errorf("preset %d legacy field %q: %w", id, record[5], err)
	}
	return Preset{
		ID: id,
		Item: ContentItem{
			Source:        record[1],
			SourceAccount: record[2],
			Location:      record[3],
			ItemName:      record[4],
			Presetable:    true,
			PresetID:      id,
			Unused:        unused,
		},
	}, nil
}
