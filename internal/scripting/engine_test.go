package scripting

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/l1jgo/bestiary/internal/battle"
	"github.com/l1jgo/bestiary/internal/creature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	e, err := NewEngine(dir, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestNoScriptUsesDefault(t *testing.T) {
	e := newEngine(t, "")
	assert.False(t, e.HasBattleReward())
	assert.Nil(t, e.RewardFunc())
	assert.Equal(t, battle.DefaultReward, e.BattleReward(creature.Creature{}, creature.Creature{}))
}

func TestBattleRewardFromScript(t *testing.T) {
	e := newEngine(t, "")
	require.NoError(t, e.LoadString(`
function battle_reward(winner, loser)
  if loser.type == "Dragon" then
    return { power = 25, level = 2 }
  end
  return { power = winner.level, level = 1 }
end
`))
	require.True(t, e.HasBattleReward())

	w := creature.Creature{ID: 1, Level: 7, Power: 50}
	assert.Equal(t, battle.Reward{Power: 7, Level: 1}, e.BattleReward(w, creature.Creature{Type: "Rock"}))
	assert.Equal(t, battle.Reward{Power: 25, Level: 2}, e.BattleReward(w, creature.Creature{Type: "Dragon"}))

	out, err := battle.Decide(w, creature.Creature{ID: 2, Power: 10, Type: "Dragon"}, e.RewardFunc())
	require.NoError(t, err)
	assert.Equal(t, int32(75), out.Winner.Power)
	assert.Equal(t, int32(9), out.Winner.Level)
}

func TestBattleRewardFallbacks(t *testing.T) {
	cases := map[string]string{
		"runtime error": `function battle_reward(w, l) error("nope") end`,
		"non-table":     `function battle_reward(w, l) return 3 end`,
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			e := newEngine(t, "")
			require.NoError(t, e.LoadString(src))
			assert.Equal(t, battle.DefaultReward, e.BattleReward(creature.Creature{}, creature.Creature{}))
		})
	}

	e := newEngine(t, "")
	require.NoError(t, e.LoadString(`function battle_reward(w, l) return { power = -5, level = -1 } end`))
	assert.Equal(t, battle.Reward{}, e.BattleReward(creature.Creature{}, creature.Creature{}))

	e = newEngine(t, "")
	require.NoError(t, e.LoadString(`function battle_reward(w, l) return { power = 1e12, level = 0/0 } end`))
	assert.Equal(t, battle.Reward{Power: math.MaxInt32}, e.BattleReward(creature.Creature{}, creature.Creature{}))
}

func TestLoadScriptsDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "battle"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "battle", "reward.lua"),
		[]byte(`function battle_reward(w, l) return { power = 10, level = 1 } end`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "battle", "notes.txt"), []byte("ignored"), 0o644))

	e := newEngine(t, dir)
	assert.True(t, e.HasBattleReward())
	assert.Equal(t, battle.DefaultReward, e.BattleReward(creature.Creature{}, creature.Creature{}))

	// a broken script fails engine creation
	require.NoError(t, os.WriteFile(filepath.Join(dir, "battle", "broken.lua"), []byte("function ("), 0o644))
	_, err := NewEngine(dir, zaptest.NewLogger(t))
	assert.Error(t, err)

	// missing directories are skipped
	newEngine(t, filepath.Join(dir, "nope"))
}
