package lua

import (
	"context"
	"log"
	"math"
	"time"

	lua "github.com/yuin/gopher-lua"

	"goxlr-controller/internal/command"
	"goxlr-controller/internal/core"
)

// registerGoFunctions exposes Go functions to the given Lua state. Every device
// function takes the serial first; bad arguments raise a Lua error.
func (e *Engine) registerGoFunctions(L *lua.LState, ctx context.Context) {
	send := func(L *lua.LState, kind command.Kind) int {
		e.submit(L, ctx, L.CheckString(1), kind)
		return 0
	}

	L.SetGlobal("set_volume", L.NewFunction(func(L *lua.LState) int {
		return send(L, command.SetVolume{Channel: L.CheckString(2), Level: checkInteger(L, 3)})
	}))
	L.SetGlobal("load_profile", L.NewFunction(func(L *lua.LState) int {
		return send(L, command.LoadProfile{Profile: L.CheckString(2)})
	}))
	L.SetGlobal("set_button_colours", L.NewFunction(func(L *lua.LState) int {
		button := L.CheckString(2)
		primary := e.checkColour(L, 3)
		pair := command.SingleColour(primary)
		if L.GetTop() >= 4 && L.Get(4) != lua.LNil {
			pair = command.DualColour(primary, e.checkColour(L, 4))
		}
		return send(L, command.SetButtonColours{Button: button, Colours: pair})
	}))
	L.SetGlobal("set_simple_colour", L.NewFunction(func(L *lua.LState) int {
		return send(L, command.SetSimpleColour{Target: L.CheckString(2), Colour: e.checkColour(L, 3)})
	}))
	L.SetGlobal("set_global_colour", L.NewFunction(func(L *lua.LState) int {
		return send(L, command.SetGlobalColour{Colour: e.checkColour(L, 2)})
	}))
	L.SetGlobal("set_fader_colours", L.NewFunction(func(L *lua.LState) int {
		return send(L, command.SetFaderColours{
			Fader:     L.CheckString(2),
			Primary:   e.checkColour(L, 3),
			Secondary: e.checkColour(L, 4),
		})
	}))
	L.SetGlobal("set_fader_mute_state", L.NewFunction(func(L *lua.LState) int {
		return send(L, command.SetFaderMuteState{Fader: L.CheckString(2), State: L.CheckString(3)})
	}))

	L.SetGlobal("print", L.NewFunction(luaPrint))
	L.SetGlobal("sleep", L.NewFunction(func(L *lua.LState) int {
		cancellableSleep(ctx, time.Duration(L.CheckInt(1))*time.Millisecond)
		return 0
	}))
	L.SetGlobal("should_stop", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(ctx.Err() != nil))
		return 1
	}))
}

func luaPrint(L *lua.LState) int {
	log.Printf("[LUA] %s", L.ToString(1))
	return 0
}

func checkInteger(L *lua.LState, n int) int {
	v := float64(L.CheckNumber(n))
	if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
		L.ArgError(n, "integer expected")
	}
	return int(v)
}

func (e *Engine) checkColour(L *lua.LState, n int) command.Colour {
	c, err := command.ParseColourWith(L.CheckString(n), e.policy)
	if err != nil {
		L.ArgError(n, err.Error())
	}
	return c
}

// submit encodes kind for serial, raising a Lua error if that fails, and waits
// until the command channel accepts it or the script is stopped.
func (e *Engine) submit(L *lua.LState, ctx context.Context, serial string, kind command.Kind) {
	if _, err := command.Encode(serial, kind); err != nil {
		L.RaiseError("%s: %v", kind.Name(), err)
		return
	}
	select {
	case e.commands <- core.Command{Serial: serial, Kind: kind, Source: core.SourceScript}:
	case <-ctx.Done():
	}
}

// cancellableSleep sleeps for d, waking early if ctx is cancelled. It returns true
// if the context was cancelled.
func cancellableSleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return false
	case <-ctx.Done():
		return true
	}
}
