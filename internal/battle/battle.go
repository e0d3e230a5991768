// Package battle decides the outcome of a fight between two creatures.
// It performs no I/O; applying an Outcome to a store is the caller's job.
package battle

import "github.com/l1jgo/bestiary/internal/creature"

// Reward is what the winner of a battle gains.
type Reward struct {
	Power int32
	Level int32
}

// DefaultReward is applied when no script overrides it.
var DefaultReward = Reward{Power: 10, Level: 1}

// Outcome of one battle. On a draw Winner and Loser are zero values and
// nothing must be persisted.
type Outcome struct {
	Draw   bool              `json:"draw"`
	Winner creature.Creature `json:"winner"`
	Loser  creature.Creature `json:"loser"`
}

// RewardFunc computes the reward for winner beating loser, both as they
// were before the battle.
type RewardFunc func(winner, loser creature.Creature) Reward

// Decide compares power: equal power is a draw, otherwise the stronger
// creature wins and is promoted by the reward from fn (DefaultReward when fn
// is nil). The returned Winner already carries the promotion. A promotion
// that would overflow a stat is a ValidationError.
func Decide(attacker, defender creature.Creature, fn RewardFunc) (Outcome, error) {
	if attacker.Power == defender.Power {
		return Outcome{Draw: true}, nil
	}

	winner, loser := attacker, defender
	if defender.Power > attacker.Power {
		winner, loser = defender, attacker
	}

	reward := DefaultReward
	if fn != nil {
		reward = fn(winner, loser)
	}
	power, err := creature.AddStat("power", winner.Power, reward.Power)
	if err != nil {
		return Outcome{}, err
	}
	level, err := creature.AddStat("level", winner.Level, reward.Level)
	if err != nil {
		return Outcome{}, err
	}
	winner.Power, winner.Level = power, level
	return Outcome{Winner: winner, Loser: loser}, nil
}
