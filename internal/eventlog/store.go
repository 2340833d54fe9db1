package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// EventStore provides thread-safe, chronological storage for actor events,
// partitioned by dataset id.
type EventStore struct {
	mu   sync.RWMutex
	logs map[string][]Event
}

// NewEventStore creates a new empty EventStore.
func NewEventStore() *EventStore {
	return &EventStore{
		logs: make(map[string][]Event),
	}
}

// Append adds new events to a dataset, ensuring chronological order and
// deduplication.
func (s *EventStore) Append(dataset string, events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := s.logs[dataset]

	existing := make(map[string]bool, len(stored))
	for _, e := range stored {
		existing[e.identity()] = true
	}

	newCount := 0
	for _, e := range events {
		if !existing[e.identity()] {
			existing[e.identity()] = true
			stored = append(stored, e)
			newCount++
		}
	}

	if newCount == 0 {
		return
	}

	// Timestamp then actor then event id, for deterministic iteration.
	sort.Slice(stored, func(i, j int) bool {
		if stored[i].Timestamp != stored[j].Timestamp {
			return stored[i].Timestamp < stored[j].Timestamp
		}
		if stored[i].ActorID != stored[j].ActorID {
			return stored[i].ActorID < stored[j].ActorID
		}
		return stored[i].EventID < stored[j].EventID
	})

	s.logs[dataset] = stored
}

// Load reads events from a JSONL cache file into the given dataset.
func (s *EventStore) Load(cacheDir, dataset string) error {
	path := filepath.Join(cacheDir, fmt.Sprintf("%s.jsonl", dataset))
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No cache yet, not an error
		}
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			log.Warn().Err(err).Str("dataset", dataset).Msg("Skipping invalid JSON line in cache")
			continue
		}
		events = append(events, e)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading cache: %w", err)
	}

	log.Info().Str("dataset", dataset).Int("count", len(events)).Msg("Loaded events from cache")
	s.Append(dataset, events)
	return nil
}

// LoadFile ingests an arbitrary JSONL file into the given dataset and
// returns how many events were read.
func (s *EventStore) LoadFile(path, dataset string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	var events []Event
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e Event
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return 0, fmt.Errorf("invalid JSON line %d: %w", len(events)+1, err)
		}
		events = append(events, e)
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading %s: %w", path, err)
	}

	s.Append(dataset, events)
	return len(events), nil
}

// Save persists a dataset to a JSONL cache file via an atomic rename.
func (s *EventStore) Save(cacheDir, dataset string) error {
	s.mu.RLock()
	stored, ok := s.logs[dataset]
	s.mu.RUnlock()

	if !ok || len(stored) == 0 {
		return nil
	}

	path := filepath.Join(cacheDir, fmt.Sprintf("%s.jsonl", dataset))
	tmpPath := path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)

	for _, e := range stored {
		if err := encoder.Encode(e); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	log.Info().Str("dataset", dataset).Int("count", len(stored)).Msg("Events saved to cache")
	return nil
}

// Clear removes all events for a dataset.
func (s *EventStore) Clear(dataset string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logs, dataset)
}

// Count returns the number of events stored for a dataset.
func (s *EventStore) Count(dataset string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[dataset])
}

// Datasets lists the dataset ids currently held in the store.
func (s *EventStore) Datasets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.logs))
	for id := range s.logs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetLatestTimestamp returns the timestamp of the most recent event in a
// dataset.
func (s *EventStore) GetLatestTimestamp(dataset string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.logs[dataset]
	if !ok || len(stored) == 0 {
		return time.Time{}
	}

	// Events are sorted, so the last one is the latest
	return time.UnixMicro(stored[len(stored)-1].Timestamp)
}

// GetEventsInRange returns a copy of a dataset's events within the time
// window. Zero boundaries leave the range unbounded on that side.
func (s *EventStore) GetEventsInRange(dataset string, start, end time.Time) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.logs[dataset]
	if !ok {
		return nil
	}

	startTs := start.UnixMicro()
	endTs := end.UnixMicro()

	var result []Event
	for _, e := range stored {
		if !start.IsZero() && e.Timestamp < startTs {
			continue
		}
		if !end.IsZero() && e.Timestamp > endTs {
			continue
		}
		result = append(result, e)
	}
	return result
}

// GetEventsForActor returns the full stored history for a single actor.
func (s *EventStore) GetEventsForActor(dataset, actorID string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Event
	for _, e := range s.logs[dataset] {
		if e.ActorID == actorID {
			result = append(result, e)
		}
	}
	return result
}
