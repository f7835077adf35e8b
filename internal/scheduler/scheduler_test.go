package scheduler

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/robfig/cron/v3"

	"goxlr-controller/internal/command"
	"goxlr-controller/internal/core"
)

type fakeScripts struct {
	ran []string
}

func (f *fakeScripts) RunScript(name string) error {
	f.ran = append(f.ran, name)
	return nil
}

func newTestScheduler(t *testing.T, file string) (*Scheduler, core.CommandChannel, *fakeScripts) {
	t.Helper()
	ch := make(core.CommandChannel, 4)
	scripts := &fakeScripts{}
	return NewScheduler(ch, scripts, core.NewEventBus(), command.CaseStrict, file), ch, scripts
}

func TestAddValidates(t *testing.T) {
	s, _, _ := newTestScheduler(t, filepath.Join(t.TempDir(), "schedules.json"))

	tests := []struct {
		name  string
		entry Entry
		want  error
	}{
		{"bad spec", Entry{Spec: "every day", Serial: "S1", Command: "LoadProfile", Payload: json.RawMessage(`{"profile":"Day"}`)}, ErrInvalidEntry},
		{"empty spec", Entry{Serial: "S1", Command: "LoadProfile"}, ErrInvalidEntry},
		{"nothing to do", Entry{Spec: "0 9 * * *"}, ErrInvalidEntry},
		{"both", Entry{Spec: "0 9 * * *", Script: "x.lua", Command: "LoadProfile"}, ErrInvalidEntry},
		{"unknown command", Entry{Spec: "0 9 * * *", Serial: "S1", Command: "Explode"}, command.ErrUnknownCommandKind},
		{"bad colour", Entry{Spec: "0 9 * * *", Serial: "S1", Command: "SetGlobalColour", Payload: json.RawMessage(`{"colour":"red"}`)}, command.ErrInvalidColour},
		{"empty serial", Entry{Spec: "0 9 * * *", Serial: " ", Command: "SetGlobalColour", Payload: json.RawMessage(`{"colour":"FF0000"}`)}, command.ErrEmptySerial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Add(tt.entry); !errors.Is(err, tt.want) {
				t.Fatalf("Add() error = %v, want %v", err, tt.want)
			}
		})
	}
	if n := len(s.GetAll()); n != 0 {
		t.Fatalf("%d invalid entries stored", n)
	}
}

func TestJobSubmitsCommand(t *testing.T) {
	s, ch, scripts := newTestScheduler(t, filepath.Join(t.TempDir(), "schedules.json"))

	job, err := s.job(Entry{Spec: "0 9 * * *", Serial: "S1", Command: "LoadProfile", Payload: json.RawMessage(`{"profile":"Day"}`)})
	if err != nil {
		t.Fatal(err)
	}
	job()
	cmd := <-ch
	if cmd.Serial != "S1" || cmd.Source != core.SourceScheduler || cmd.Kind != (command.LoadProfile{Profile: "Day"}) {
		t.Fatalf("submitted %+v", cmd)
	}

	job, err = s.job(Entry{Spec: "@hourly", Script: "rainbow.lua"})
	if err != nil {
		t.Fatal(err)
	}
	job()
	if len(scripts.ran) != 1 || scripts.ran[0] != "rainbow.lua" {
		t.Fatalf("scripts run = %v", scripts.ran)
	}
}

func TestPersistence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schedules.json")
	s, _, _ := newTestScheduler(t, file)

	id, err := s.Add(Entry{Spec: "30 7 * * 1-5", Serial: "S1", Command: "SetVolume", Payload: json.RawMessage(`{"channel":"Mic","level":60}`)})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := s.Add(Entry{Spec: "0 22 * * *", Script: "night.lua"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	reloaded, _, _ := newTestScheduler(t, file)
	all := reloaded.GetAll()
	if len(all) != 2 {
		t.Fatalf("reloaded %d entries, want 2", len(all))
	}
	var scripts, commands int
	for _, e := range all {
		if e.Script == "night.lua" {
			scripts++
		}
		if e.Command == "SetVolume" && e.Serial == "S1" {
			commands++
		}
	}
	if scripts != 1 || commands != 1 {
		t.Fatalf("reloaded entries = %+v", all)
	}

	if err := s.Remove(int(id)); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := s.Remove(int(id)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Remove() error = %v, want ErrNotFound", err)
	}
	reloaded, _, _ = newTestScheduler(t, file)
	if n := len(reloaded.GetAll()); n != 1 {
		t.Fatalf("after Remove reloaded %d entries, want 1", n)
	}
}

func TestAddPublishesScheduleList(t *testing.T) {
	bus := core.NewEventBus()
	sub := bus.Subscribe(core.SchedulesChangedEvent)
	s := NewScheduler(make(core.CommandChannel, 1), nil, bus, command.CaseStrict, filepath.Join(t.TempDir(), "s.json"))

	if _, err := s.Add(Entry{Spec: "@daily", Script: "a.lua"}); err != nil {
		t.Fatal(err)
	}
	ev := <-sub
	if list, ok := ev.Payload.(map[cron.EntryID]Entry); !ok || len(list) != 1 {
		t.Fatalf("payload = %#v", ev.Payload)
	}
	if got := s.IDs(); len(got) != 1 {
		t.Fatalf("IDs() = %v", got)
	}
}
