package data

import (
	"fmt"
	"os"

	"github.com/l1jgo/bestiary/internal/creature"
	"gopkg.in/yaml.v3"
)

// CreatureEntry is one seed record. Seed creatures have no id; the store
// assigns one when they are added.
type CreatureEntry struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Level int32  `yaml:"level"`
	Power int32  `yaml:"power"`
}

type creatureListFile struct {
	Creatures []CreatureEntry `yaml:"creatures"`
}

// CreatureList holds the seed creatures in file order.
type CreatureList struct {
	entries []CreatureEntry
}

// Count returns the number of seed creatures.
func (l *CreatureList) Count() int {
	return len(l.entries)
}

// Creatures returns the seed entries as creatures ready to be added.
func (l *CreatureList) Creatures() []creature.Creature {
	result := make([]creature.Creature, 0, len(l.entries))
	for _, e := range l.entries {
		result = append(result, creature.Creature{Name: e.Name, Type: e.Type, Level: e.Level, Power: e.Power})
	}
	return result
}

// LoadCreatureList loads seed creatures from a YAML file and validates each one.
func LoadCreatureList(path string) (*CreatureList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read creature_list: %w", err)
	}
	var f creatureListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse creature_list: %w", err)
	}
	for i, e := range f.Creatures {
		c := creature.Creature{Name: e.Name, Type: e.Type, Level: e.Level, Power: e.Power}.Normalize()
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("creature_list entry %d: %w", i, err)
		}
	}
	return &CreatureList{entries: f.Creatures}, nil
}
