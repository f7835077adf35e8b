// Package lua runs user scripts that drive GoXLR devices through the command channel.
package lua

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	lua "github.com/yuin/gopher-lua"

	"goxlr-controller/internal/command"
	"goxlr-controller/internal/core"
)

var (
	// ErrEngineBusy is returned when the engine cannot take another request right now.
	ErrEngineBusy   = errors.New("script engine busy")
	ErrEngineClosed = errors.New("script engine closed")
)

// cmdType defines the type of engine command.
type cmdType int

const (
	cmdRunFile cmdType = iota
	cmdStop
)

// engineCmd represents a command sent to the Lua engine.
type engineCmd struct {
	kind cmdType
	name string
	path string
}

// Engine manages the Lua scripting environment using a single worker goroutine
// to ensure only one script runs at a time.
type Engine struct {
	commands   core.CommandChannel
	policy     command.CasePolicy
	scriptsDir string
	eventBus   *core.EventBus

	// run numbers the latest started script; only that run reports itself finished.
	run atomic.Uint64

	mu      sync.Mutex
	closed  bool
	cmdChan chan engineCmd
	stopped chan struct{}
}

// NewEngine creates a new Lua engine and starts its background worker. Commands
// issued by scripts are pushed to commands.
func NewEngine(commands core.CommandChannel, policy command.CasePolicy, scriptsDir string, eb *core.EventBus) *Engine {
	e := &Engine{
		commands:   commands,
		policy:     policy,
		scriptsDir: scriptsDir,
		eventBus:   eb,
		cmdChan:    make(chan engineCmd, 10),
		stopped:    make(chan struct{}),
	}

	go e.runLoop()

	return e
}

// runLoop is the main worker loop that processes engine commands sequentially.
func (e *Engine) runLoop() {
	defer close(e.stopped)

	var currentCancel context.CancelFunc
	var scriptDone chan struct{}

	stopCurrent := func() {
		if currentCancel == nil {
			return
		}
		currentCancel()
		select {
		case <-scriptDone:
		case <-time.After(2 * time.Second):
			log.Println("[Lua] Timeout waiting for script to stop")
		}
		currentCancel = nil
		scriptDone = nil
	}
	defer stopCurrent()

	for cmd := range e.cmdChan {
		stopCurrent()

		if cmd.kind == cmdStop {
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		currentCancel = cancel
		scriptDone = make(chan struct{})
		run := e.run.Add(1)

		go func(cmd engineCmd, done chan struct{}) {
			defer close(done)
			_ = e.execute(ctx, run, cmd.name, func(L *lua.LState) error {
				return L.DoFile(cmd.path)
			})
		}(cmd, scriptDone)
	}
}

// RunScript stops the running script, if any, and starts the named one.
func (e *Engine) RunScript(name string) error {
	path, err := e.existingPath(name)
	if err != nil {
		return err
	}
	return e.enqueue(engineCmd{kind: cmdRunFile, name: name, path: path})
}

// StopScript stops the currently running script if any.
func (e *Engine) StopScript() error {
	return e.enqueue(engineCmd{kind: cmdStop})
}

// Close stops the running script and the worker.
func (e *Engine) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.cmdChan)
	}
	e.mu.Unlock()
	<-e.stopped
}

func (e *Engine) enqueue(cmd engineCmd) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	select {
	case e.cmdChan <- cmd:
		return nil
	default:
		log.Println("[Lua] Command channel full, dropping request")
		return ErrEngineBusy
	}
}

// execute runs Lua code in a fresh state with the device functions registered. It
// returns the script error, or nil when the script finished or was cancelled.
// The finished status is published only while run is still the latest run.
func (e *Engine) execute(ctx context.Context, run uint64, name string, executor func(*lua.LState) error) error {
	log.Printf("[Lua] Starting script '%s'...", name)
	e.publish(name)

	defer func() {
		log.Printf("[Lua] Script '%s' finished.", name)
		if e.run.Load() == run {
			e.publish("")
		}
	}()

	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)
	e.registerGoFunctions(L, ctx)

	if err := executor(L); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			log.Printf("[Lua] Script '%s' execution was canceled.", name)
			return nil
		}
		log.Printf("[Lua] Error executing script '%s': %v", name, err)
		return fmt.Errorf("script %s: %w", name, err)
	}
	return nil
}

func (e *Engine) publish(running string) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(core.Event{
		Type:    core.ScriptChangedEvent,
		Payload: core.ScriptStatus{Running: running},
	})
}
