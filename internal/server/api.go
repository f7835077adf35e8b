package server

import (
	"errors"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"goxlr-controller/internal/command"
	"goxlr-controller/internal/core"
	"goxlr-controller/internal/lua"
	"goxlr-controller/internal/scheduler"
)

type statusResponse struct {
	DaemonConnected bool                        `json:"daemon_connected"`
	RunningScript   string                      `json:"running_script"`
	Devices         map[string]core.DeviceState `json:"devices"`
	Queue           map[string]int              `json:"queue"`
}

func (s *Server) handleStatus(c echo.Context) error {
	snap := s.deps.State.Clone()
	resp := statusResponse{
		DaemonConnected: snap.DaemonConnected,
		RunningScript:   snap.RunningScript,
		Devices:         snap.Devices,
		Queue:           map[string]int{},
	}
	if s.deps.Pending != nil {
		resp.Queue = s.deps.Pending()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCatalog(c echo.Context) error {
	type entry struct {
		command.Entry
		Usage string `json:"usage"`
	}
	catalog := command.Catalog()
	out := make([]entry, 0, len(catalog))
	for _, e := range catalog {
		out = append(out, entry{Entry: e, Usage: e.Usage()})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleEncode(c echo.Context) error {
	var req CommandRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, err)
	}
	env, _, err := s.encode(req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"envelope": env})
}

func (s *Server) handleDeviceCommand(c echo.Context) error {
	var req CommandRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, err)
	}
	req.Serial = c.Param("serial")
	env, err := s.submit(req, core.SourceAPI)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]any{"envelope": env})
}

func (s *Server) handleListSchedules(c echo.Context) error {
	return c.JSON(http.StatusOK, s.deps.Schedules.GetAll())
}

func (s *Server) handleAddSchedule(c echo.Context) error {
	var entry scheduler.Entry
	if err := c.Bind(&entry); err != nil {
		return respondError(c, err)
	}
	id, err := s.deps.Schedules.Add(entry)
	if err != nil {
		if id == 0 {
			return respondError(c, err)
		}
		log.Printf("[Server] Schedule %d added but not saved: %v", id, err)
	}
	return c.JSON(http.StatusCreated, map[string]int{"id": int(id)})
}

func (s *Server) handleRemoveSchedule(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorBody{Message: "invalid schedule id"})
	}
	if err := s.deps.Schedules.Remove(id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleListScripts(c echo.Context) error {
	list, err := s.deps.Scripts.ListScripts()
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetScript(c echo.Context) error {
	name := c.Param("name")
	code, err := s.deps.Scripts.GetScript(name)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"name": name, "code": code})
}

func (s *Server) handleSaveScript(c echo.Context) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&body); err != nil {
		return respondError(c, err)
	}
	if err := s.deps.Scripts.SaveScript(c.Param("name"), body.Code); err != nil {
		return respondError(c, err)
	}
	s.broadcastScripts()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleDeleteScript(c echo.Context) error {
	if err := s.deps.Scripts.DeleteScript(c.Param("name")); err != nil {
		return respondError(c, err)
	}
	s.broadcastScripts()
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRunScript(c echo.Context) error {
	if err := s.deps.Scripts.RunScript(c.Param("name")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleStopScript(c echo.Context) error {
	if err := s.deps.Scripts.StopScript(); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) broadcastScripts() {
	if list, err := s.deps.Scripts.ListScripts(); err == nil {
		s.Hub.Broadcast(NewMessage(MsgScriptList, list))
	}
}

func errorBody(err error) ErrorBody {
	return ErrorBody{Code: command.Code(err), Message: err.Error()}
}

func respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		status = he.Code
	case command.Code(err) != "":
		status = http.StatusBadRequest
	case errors.Is(err, ErrBusy), errors.Is(err, lua.ErrEngineBusy), errors.Is(err, lua.ErrEngineClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, lua.ErrInvalidScriptName), errors.Is(err, scheduler.ErrInvalidEntry):
		status = http.StatusBadRequest
	case errors.Is(err, os.ErrNotExist), errors.Is(err, scheduler.ErrNotFound):
		status = http.StatusNotFound
	}
	return c.JSON(status, errorBody(err))
}
