// Package server exposes the agent over a REST API and a WebSocket push channel.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"

	"goxlr-controller/internal/command"
	"goxlr-controller/internal/core"
	"goxlr-controller/internal/scheduler"
)

// ErrBusy is returned when the command channel cannot take another command.
var ErrBusy = errors.New("command channel full")

// Scripts is the script engine as the server uses it.
type Scripts interface {
	ListScripts() ([]string, error)
	GetScript(name string) (string, error)
	SaveScript(name, code string) error
	DeleteScript(name string) error
	RunScript(name string) error
	StopScript() error
}

// Schedules is the scheduler as the server uses it.
type Schedules interface {
	Add(e scheduler.Entry) (cron.EntryID, error)
	Remove(id int) error
	GetAll() map[cron.EntryID]scheduler.Entry
}

// Deps are the components the server reads from and submits to.
type Deps struct {
	State     *core.State
	EventBus  *core.EventBus
	Commands  core.CommandChannel
	Scripts   Scripts
	Schedules Schedules
	// Pending reports queued commands per serial; optional.
	Pending func() map[string]int
	Policy  command.CasePolicy
}

// Server manages the HTTP and WebSocket services.
type Server struct {
	Hub  *Hub
	deps Deps
	echo *echo.Echo
	port string

	staticFilesDir string
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewServer creates a new server instance and starts its hub.
func NewServer(deps Deps, port string, staticFilesDir string, allowedOrigins []string) *Server {
	hub := NewHub()
	go hub.Run()

	s := &Server{
		Hub:            hub,
		deps:           deps,
		port:           port,
		staticFilesDir: staticFilesDir,
		allowedOrigins: allowedOrigins,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	api := e.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/commands", s.handleCatalog)
	api.POST("/encode", s.handleEncode)
	api.POST("/devices/:serial/commands", s.handleDeviceCommand)

	api.GET("/schedules", s.handleListSchedules)
	api.POST("/schedules", s.handleAddSchedule)
	api.DELETE("/schedules/:id", s.handleRemoveSchedule)

	api.GET("/scripts", s.handleListScripts)
	api.POST("/scripts/stop", s.handleStopScript)
	api.GET("/scripts/:name", s.handleGetScript)
	api.PUT("/scripts/:name", s.handleSaveScript)
	api.DELETE("/scripts/:name", s.handleDeleteScript)
	api.POST("/scripts/:name/run", s.handleRunScript)

	e.GET("/ws", s.handleWebSocket)
	e.Static("/", staticFilesDir)

	s.echo = e
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) ListenAndServe() error {
	err := s.echo.Start(":" + s.port)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.Hub.Close()
	return s.echo.Shutdown(ctx)
}

// ForwardEvents pushes bus events to WebSocket clients until ctx is cancelled.
func (s *Server) ForwardEvents(ctx context.Context) {
	if s.deps.EventBus == nil {
		return
	}
	types := []core.EventType{
		core.DaemonConnectedEvent,
		core.CommandSentEvent,
		core.CommandFailedEvent,
		core.ScriptChangedEvent,
		core.SchedulesChangedEvent,
	}
	sub := s.deps.EventBus.Subscribe(types...)
	defer s.deps.EventBus.Unsubscribe(sub, types...)

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-sub:
			if msg, ok := eventMessage(event); ok {
				s.Hub.Broadcast(msg)
			}
		}
	}
}

func eventMessage(event core.Event) (Message, bool) {
	switch event.Type {
	case core.DaemonConnectedEvent:
		return NewMessage(MsgDaemonStatus, event.Payload), true
	case core.CommandSentEvent:
		return NewMessage(MsgCommandSent, event.Payload), true
	case core.CommandFailedEvent:
		return NewMessage(MsgCommandFailed, event.Payload), true
	case core.ScriptChangedEvent:
		return NewMessage(MsgScriptStatus, event.Payload), true
	case core.SchedulesChangedEvent:
		return NewMessage(MsgScheduleList, event.Payload), true
	}
	return Message{}, false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		log.Println("[Server] Warning: WebSocket CheckOrigin is disabled.")
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		// not a browser
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	log.Printf("[Server] WebSocket connection blocked: Origin '%s' not in allowed list.", origin)
	return false
}

// submit decodes a command request, checks it encodes and hands it to the agent.
func (s *Server) submit(req CommandRequest, source core.Source) (command.Envelope, error) {
	env, kind, err := s.encode(req)
	if err != nil {
		return command.Envelope{}, err
	}
	if !s.deps.Commands.TrySubmit(core.Command{Serial: req.Serial, Kind: kind, Source: source}) {
		return command.Envelope{}, ErrBusy
	}
	return env, nil
}

func (s *Server) encode(req CommandRequest) (command.Envelope, command.Kind, error) {
	kind, err := command.DecodeKind(req.Command, req.Payload, s.deps.Policy)
	if err != nil {
		return command.Envelope{}, nil, err
	}
	env, err := command.Encode(req.Serial, kind)
	if err != nil {
		return command.Envelope{}, nil, err
	}
	return env, kind, nil
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("[Server] WebSocket upgrade error: %v", err)
		return nil
	}
	defer conn.Close()

	for _, msg := range s.initialMessages() {
		if err := conn.WriteJSON(msg); err != nil {
			return nil
		}
	}

	if !s.Hub.add(conn) {
		return nil
	}
	defer s.Hub.remove(conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Server] WebSocket read error: %v", err)
			}
			return nil
		}
		var req CommandRequest
		if err := json.Unmarshal(data, &req); err != nil {
			_ = s.Hub.Send(conn, NewMessage(MsgError, ErrorBody{Message: "malformed request: " + err.Error()}))
			continue
		}
		env, err := s.submit(req, core.SourceWebSocket)
		if err != nil {
			_ = s.Hub.Send(conn, NewMessage(MsgError, errorBody(err)))
			continue
		}
		_ = s.Hub.Send(conn, NewMessage(MsgAccepted, map[string]any{"envelope": env}))
	}
}

func (s *Server) initialMessages() []Message {
	var msgs []Message
	if s.deps.State != nil {
		snap := s.deps.State.Clone()
		msgs = append(msgs,
			NewMessage(MsgDaemonStatus, core.DaemonStatus{Connected: snap.DaemonConnected}),
			NewMessage(MsgStatus, snap),
			NewMessage(MsgScriptStatus, core.ScriptStatus{Running: snap.RunningScript}),
		)
	}
	if s.deps.Scripts != nil {
		if list, err := s.deps.Scripts.ListScripts(); err == nil {
			msgs = append(msgs, NewMessage(MsgScriptList, list))
		}
	}
	if s.deps.Schedules != nil {
		msgs = append(msgs, NewMessage(MsgScheduleList, s.deps.Schedules.GetAll()))
	}
	return msgs
}
