package scripting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/l1jgo/bestiary/internal/battle"
	"github.com/l1jgo/bestiary/internal/creature"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM holding the battle rule scripts.
// The VM is not goroutine-safe, so every call into it holds mu.
type Engine struct {
	mu  sync.Mutex
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads every script under scriptsDir/battle.
// A missing directory yields an engine with no hooks defined.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}
	if scriptsDir == "" {
		return e, nil
	}
	if err := e.loadDir(filepath.Join(scriptsDir, "battle")); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load battle scripts: %w", err)
	}
	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadString evaluates src in the engine's VM.
func (e *Engine) LoadString(src string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.DoString(src)
}

// HasBattleReward reports whether a script defines battle_reward.
func (e *Engine) HasBattleReward() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.vm.GetGlobal("battle_reward") != lua.LNil
}

// BattleReward calls the Lua battle_reward(winner, loser) function, which
// receives two tables {id, name, type, level, power} and returns a table
// {power = n, level = n}. Any failure falls back to battle.DefaultReward;
// amounts are clamped to 0..math.MaxInt32.
func (e *Engine) BattleReward(winner, loser creature.Creature) battle.Reward {
	e.mu.Lock()
	defer e.mu.Unlock()

	fn := e.vm.GetGlobal("battle_reward")
	if fn == lua.LNil {
		return battle.DefaultReward
	}

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, e.creatureTable(winner), e.creatureTable(loser)); err != nil {
		e.log.Error("lua battle_reward error", zap.Error(err))
		return battle.DefaultReward
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		e.log.Error("lua battle_reward returned non-table")
		return battle.DefaultReward
	}

	return battle.Reward{
		Power: clamp(lua.LVAsNumber(rt.RawGetString("power"))),
		Level: clamp(lua.LVAsNumber(rt.RawGetString("level"))),
	}
}

// RewardFunc adapts the engine to battle.Decide, or returns nil when no
// script defines battle_reward.
func (e *Engine) RewardFunc() battle.RewardFunc {
	if e == nil || !e.HasBattleReward() {
		return nil
	}
	return e.BattleReward
}

func (e *Engine) creatureTable(c creature.Creature) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("id", lua.LNumber(c.ID))
	t.RawSetString("name", lua.LString(c.Name))
	t.RawSetString("type", lua.LString(c.Type))
	t.RawSetString("level", lua.LNumber(c.Level))
	t.RawSetString("power", lua.LNumber(c.Power))
	return t
}

// clamp maps a script number onto 0..math.MaxInt32.
func clamp(n lua.LNumber) int32 {
	switch {
	case math.IsNaN(float64(n)) || n < 0:
		return 0
	case n > math.MaxInt32:
		return math.MaxInt32
	}
	return int32(n)
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}
