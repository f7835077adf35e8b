package scheduler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/robfig/cron/v3"

	"goxlr-controller/internal/command"
	"goxlr-controller/internal/core"
)

var (
	ErrInvalidEntry = errors.New("invalid schedule entry")
	ErrNotFound     = errors.New("schedule not found")
)

// Entry is a saved schedule. It either sends Command with Payload to Serial, or runs
// Script.
type Entry struct {
	Spec    string          `json:"spec"`
	Serial  string          `json:"serial,omitempty"`
	Command string          `json:"command,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Script  string          `json:"script,omitempty"`
}

// ScriptRunner starts a script by name.
type ScriptRunner interface {
	RunScript(name string) error
}

// Scheduler manages all cron-related tasks.
type Scheduler struct {
	cron           *cron.Cron
	store          map[cron.EntryID]Entry
	commandChannel core.CommandChannel
	scripts        ScriptRunner
	eventBus       *core.EventBus
	policy         command.CasePolicy
	mu             sync.RWMutex
	schedulesFile  string
}

// NewScheduler creates a scheduler and loads the saved schedules from schedulesFile.
func NewScheduler(cmdChan core.CommandChannel, scripts ScriptRunner, bus *core.EventBus, policy command.CasePolicy, schedulesFile string) *Scheduler {
	s := &Scheduler{
		cron:           cron.New(),
		store:          make(map[cron.EntryID]Entry),
		commandChannel: cmdChan,
		scripts:        scripts,
		eventBus:       bus,
		policy:         policy,
		schedulesFile:  schedulesFile,
	}
	s.load()
	return s
}

// Start begins the cron job ticker.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[Scheduler] Cron scheduler started.")
}

// Stop halts the cron job ticker and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[Scheduler] Cron scheduler stopped.")
}

// Add validates e, registers it and saves the schedule file.
func (s *Scheduler) Add(e Entry) (cron.EntryID, error) {
	e.Spec = strings.TrimSpace(e.Spec)
	job, err := s.job(e)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	id, err := s.cron.AddFunc(e.Spec, job)
	if err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("%w: cron spec %q: %v", ErrInvalidEntry, e.Spec, err)
	}
	s.store[id] = e
	saveErr := s.save()
	s.mu.Unlock()

	log.Printf("[Scheduler] Added schedule (ID %d): %s -> %s", id, e.Spec, describe(e))
	s.publish()
	return id, saveErr
}

// Remove deletes a cron job.
func (s *Scheduler) Remove(id int) error {
	s.mu.Lock()
	entryID := cron.EntryID(id)
	if _, ok := s.store[entryID]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	s.cron.Remove(entryID)
	delete(s.store, entryID)
	err := s.save()
	s.mu.Unlock()

	log.Printf("[Scheduler] Removed schedule (ID %d)", id)
	s.publish()
	return err
}

// GetAll returns a copy of the current schedules in a thread-safe way.
func (s *Scheduler) GetAll() map[cron.EntryID]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	newMap := make(map[cron.EntryID]Entry, len(s.store))
	for k, v := range s.store {
		newMap[k] = v
	}
	return newMap
}

// IDs returns the registered entry ids in ascending order.
func (s *Scheduler) IDs() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int, 0, len(s.store))
	for id := range s.store {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	return ids
}

// job checks e and returns the function cron will call for it. Commands are decoded
// once here so a bad entry is rejected when it is added, not when it fires.
func (s *Scheduler) job(e Entry) (func(), error) {
	e.Spec = strings.TrimSpace(e.Spec)
	if e.Spec == "" {
		return nil, fmt.Errorf("%w: spec is required", ErrInvalidEntry)
	}
	if _, err := cron.ParseStandard(e.Spec); err != nil {
		return nil, fmt.Errorf("%w: cron spec %q: %v", ErrInvalidEntry, e.Spec, err)
	}

	if e.Script != "" {
		if e.Command != "" || e.Serial != "" {
			return nil, fmt.Errorf("%w: script and command are exclusive", ErrInvalidEntry)
		}
		name := e.Script
		return func() { s.runScript(name) }, nil
	}

	if e.Command == "" {
		return nil, fmt.Errorf("%w: command or script is required", ErrInvalidEntry)
	}
	kind, err := command.DecodeKind(e.Command, e.Payload, s.policy)
	if err != nil {
		return nil, err
	}
	if _, err := command.Encode(e.Serial, kind); err != nil {
		return nil, err
	}
	cmd := core.Command{Serial: e.Serial, Kind: kind, Source: core.SourceScheduler}
	return func() { s.submit(cmd) }, nil
}

func (s *Scheduler) submit(cmd core.Command) {
	log.Printf("[Scheduler] Executing scheduled %s for %s", cmd.Kind.Name(), cmd.Serial)
	if !s.commandChannel.TrySubmit(cmd) {
		log.Printf("[Scheduler] Command channel full, skipping %s for %s", cmd.Kind.Name(), cmd.Serial)
	}
}

func (s *Scheduler) runScript(name string) {
	log.Printf("[Scheduler] Running scheduled script %s", name)
	if s.scripts == nil {
		log.Printf("[Scheduler] No script engine, skipping %s", name)
		return
	}
	if err := s.scripts.RunScript(name); err != nil {
		log.Printf("[Scheduler] Script %s: %v", name, err)
	}
}

func (s *Scheduler) publish() {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(core.Event{Type: core.SchedulesChangedEvent, Payload: s.GetAll()})
}

// save writes the store. Callers hold s.mu.
func (s *Scheduler) save() error {
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schedules: %w", err)
	}
	if err := os.WriteFile(s.schedulesFile, data, 0644); err != nil {
		log.Printf("[Scheduler] Error saving schedules: %v", err)
		return fmt.Errorf("save schedules: %w", err)
	}
	return nil
}

func (s *Scheduler) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.schedulesFile)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		log.Printf("[Scheduler] Error reading schedule file: %v", err)
		return
	}

	tempStore := make(map[cron.EntryID]Entry)
	if err := json.Unmarshal(data, &tempStore); err != nil {
		log.Printf("[Scheduler] Error unmarshalling schedule file: %v", err)
		return
	}

	log.Printf("[Scheduler] Loading %d schedules from file '%s'...", len(tempStore), s.schedulesFile)
	for _, entry := range tempStore {
		job, err := s.job(entry)
		if err != nil {
			log.Printf("[Scheduler] Skipping saved schedule %q: %v", entry.Spec, err)
			continue
		}
		newID, err := s.cron.AddFunc(entry.Spec, job)
		if err != nil {
			log.Printf("[Scheduler] Error re-adding schedule from file: %v", err)
			continue
		}
		s.store[newID] = entry
	}
}

func describe(e Entry) string {
	if e.Script != "" {
		return "script " + e.Script
	}
	return e.Command + " on " + e.Serial
}
