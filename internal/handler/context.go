package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/l1jgo/bestiary/internal/async"
	"github.com/l1jgo/bestiary/internal/battle"
	"github.com/l1jgo/bestiary/internal/cache"
	"github.com/l1jgo/bestiary/internal/creature"
	"github.com/l1jgo/bestiary/internal/persist"
	"go.uber.org/zap"
)

// Bestiary is the creature service as the HTTP handlers use it.
type Bestiary interface {
	Add(ctx context.Context, c creature.Creature) (creature.Creature, error)
	GetDetails(ctx context.Context, id int32) (creature.Creature, error)
	GetDetailsAsync(ctx context.Context, id int32) (*async.Future[creature.Creature], error)
	UpdateLevel(ctx context.Context, id, level int32) (creature.Creature, error)
	UpdatePower(ctx context.Context, id, power int32) (creature.Creature, error)
	Train(ctx context.Context, id, intensity int32) (creature.Creature, error)
	Delete(ctx context.Context, id int32) error
	FindByType(ctx context.Context, typ string) ([]creature.Creature, error)
	BoostByType(ctx context.Context, typ string, delta int32) ([]creature.Creature, error)
	Battle(ctx context.Context, attackerID, defenderID int32) (battle.Outcome, error)
	BattleHistory(ctx context.Context, limit int) ([]persist.BattleRecord, error)
	CacheStats() cache.Stats
}

// Deps holds shared dependencies injected into all HTTP handlers.
type Deps struct {
	Bestiary  Bestiary
	Log       *zap.Logger
	StartTime time.Time
}

// RegisterAll registers every route on mux.
func RegisterAll(mux *http.ServeMux, deps *Deps) {
	handle := func(pattern string, fn func(w http.ResponseWriter, r *http.Request, deps *Deps)) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			fn(w, r, deps)
		})
	}

	// Creatures
	handle("POST /api/creatures", HandleAddCreature)
	handle("GET /api/creatures/{id}", HandleGetCreature)
	handle("PUT /api/creatures/{id}/level", HandleUpdateLevel)
	handle("PUT /api/creatures/{id}/power", HandleUpdatePower)
	handle("PUT /api/creatures/{id}/train", HandleTrain)
	handle("DELETE /api/creatures/{id}", HandleDeleteCreature)

	// By type
	handle("GET /api/creatures/type/{type}", HandleFindByType)
	handle("POST /api/creatures/type/{type}/boost", HandleBoostByType)

	// Battles
	handle("POST /api/battles", HandleBattle)
	handle("GET /api/battles", HandleBattleHistory)

	handle("GET /healthz", HandleHealth)
}
