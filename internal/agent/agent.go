// Package agent wires the daemon connection, the per-device queue and every
// command source into one running process.
package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"goxlr-controller/internal/command"
	"goxlr-controller/internal/config"
	"goxlr-controller/internal/core"
	"goxlr-controller/internal/daemon"
	"goxlr-controller/internal/lua"
	"goxlr-controller/internal/mqtt"
	"goxlr-controller/internal/queue"
	"goxlr-controller/internal/scheduler"
	"goxlr-controller/internal/server"
)

type Agent struct {
	ctx    context.Context
	cancel context.CancelFunc
	config *config.Config
	wg     sync.WaitGroup

	state          *core.State
	eventBus       *core.EventBus
	commandChannel core.CommandChannel

	daemon     *daemon.Client
	dispatcher *queue.Dispatcher
	luaEngine  *lua.Engine
	scheduler  *scheduler.Scheduler
	server     *server.Server
	mqttClient *mqtt.Client
	broker     *mqtt.Broker
}

func NewAgent(cfg *config.Config) (*Agent, error) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := cfg.CasePolicy()

	a := &Agent{
		ctx:            ctx,
		cancel:         cancel,
		config:         cfg,
		state:          core.NewState(),
		eventBus:       core.NewEventBus(),
		commandChannel: make(core.CommandChannel, cfg.Queue.Depth),
	}

	a.daemon = daemon.NewClient(cfg.Daemon.URL, daemon.Options{
		RequestTimeout:    cfg.RequestTimeout(),
		RetryDelay:        cfg.RetryDelay(),
		HeartbeatInterval: cfg.HeartbeatInterval(),
	})

	if cfg.MQTT.Enabled && cfg.MQTT.EmbeddedBroker.Enabled {
		broker, err := mqtt.StartBroker(cfg.MQTT.EmbeddedBroker.Address, cfg.MQTT.Username, cfg.MQTT.Password)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("embedded broker: %w", err)
		}
		a.broker = broker
	}

	a.dispatcher = queue.NewDispatcher(a.daemon, queue.Options{
		RateLimit: cfg.Queue.RateLimit,
		RateBurst: cfg.Queue.RateBurst,
		Depth:     cfg.Queue.Depth,
	})

	a.luaEngine = lua.NewEngine(a.commandChannel, policy, cfg.ScriptsDir, a.eventBus)

	a.scheduler = scheduler.NewScheduler(a.commandChannel, a.luaEngine, a.eventBus, policy, cfg.SchedulesFile)

	a.server = server.NewServer(server.Deps{
		State:     a.state,
		EventBus:  a.eventBus,
		Commands:  a.commandChannel,
		Scripts:   a.luaEngine,
		Schedules: a.scheduler,
		Pending:   a.dispatcher.Pending,
		Policy:    policy,
	}, cfg.Server.Port, cfg.Server.WebFilesDir, cfg.Server.AllowedOrigins)

	// nil when MQTT is disabled
	a.mqttClient = mqtt.NewClient(cfg.MQTT, a.commandChannel, a.luaEngine, a.eventBus, policy)

	return a, nil
}

// Run starts every component and processes commands until Shutdown.
func (a *Agent) Run() {
	a.goRun(a.listenEvents)
	a.goRun(a.server.ForwardEvents)

	if a.mqttClient != nil {
		a.goRun(a.mqttClient.ForwardEvents)
		// Connect returns once connected, or when Shutdown disconnects the client.
		a.goRun(func(context.Context) {
			if err := a.mqttClient.Connect(); err != nil {
				log.Printf("[Agent] MQTT Setup Error: %v", err)
			}
		})
	}

	a.goRun(func(ctx context.Context) {
		a.daemon.Run(ctx, func(connected bool) {
			a.eventBus.Publish(core.Event{Type: core.DaemonConnectedEvent, Payload: core.DaemonStatus{Connected: connected}})
		})
	})

	a.scheduler.Start()

	log.Printf("Agent running on http://localhost:%s", a.config.Server.Port)
	go func() {
		if err := a.server.ListenAndServe(); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Println("Agent orchestrator ready.")
	for {
		select {
		case <-a.ctx.Done():
			log.Println("Agent orchestrator shutting down...")
			return
		case cmd := <-a.commandChannel:
			a.handleCommand(cmd)
		}
	}
}

func (a *Agent) goRun(fn func(ctx context.Context)) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn(a.ctx)
	}()
}

func (a *Agent) listenEvents(ctx context.Context) {
	types := []core.EventType{core.DaemonConnectedEvent, core.ScriptChangedEvent}
	sub := a.eventBus.Subscribe(types...)
	defer a.eventBus.Unsubscribe(sub, types...)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-sub:
			switch p := event.Payload.(type) {
			case core.DaemonStatus:
				if was := a.state.SetDaemonConnected(p.Connected); was != p.Connected {
					log.Printf("[Agent] Daemon connected: %v", p.Connected)
				}
			case core.ScriptStatus:
				a.state.SetRunningScript(p.Running)
			}
		}
	}
}

// handleCommand encodes cmd and queues it on its device's lane. The outcome is
// recorded in State and published once the daemon has answered.
func (a *Agent) handleCommand(cmd core.Command) {
	env, err := command.Encode(cmd.Serial, cmd.Kind)
	if err != nil {
		log.Printf("[Agent] Cannot encode command from %s: %v", cmd.Source, err)
		a.complete(cmd, command.Envelope{}, err)
		return
	}

	log.Printf("[Agent] Queueing %s for %s from %s", env.Name(), env.Serial(), cmd.Source)
	if err := a.dispatcher.Enqueue(env, func(err error) { a.complete(cmd, env, err) }); err != nil {
		a.complete(cmd, env, err)
	}
}

func (a *Agent) complete(cmd core.Command, env command.Envelope, err error) {
	name := ""
	if cmd.Kind != nil {
		name = cmd.Kind.Name().String()
	}
	if strings.TrimSpace(cmd.Serial) != "" {
		a.state.RecordResult(cmd.Serial, name, err)
	}

	result := core.CommandResult{
		Serial:  cmd.Serial,
		Command: name,
		Source:  cmd.Source,
	}
	if !env.IsZero() {
		result.Envelope = env.String()
	}
	eventType := core.CommandSentEvent
	if err != nil {
		eventType = core.CommandFailedEvent
		result.Error = err.Error()
	}
	a.eventBus.Publish(core.Event{Type: eventType, Payload: result})
}

func (a *Agent) Shutdown() {
	a.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(ctx); err != nil {
		log.Printf("[Agent] Server shutdown: %v", err)
	}

	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}
	if a.broker != nil {
		_ = a.broker.Close()
	}

	a.luaEngine.Close()
	a.cancel()
	a.wg.Wait()
	a.dispatcher.Close()
	_ = a.daemon.Close()
}
