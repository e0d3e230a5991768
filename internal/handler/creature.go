package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/l1jgo/bestiary/internal/creature"
	"go.uber.org/zap"
)

// maxBodyBytes bounds the JSON body of an add request.
const maxBodyBytes = 1 << 16

// HandleAddCreature decodes a creature from the body and stores it.
func HandleAddCreature(w http.ResponseWriter, r *http.Request, deps *Deps) {
	var c creature.Creature
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "malformed creature: "+err.Error())
		return
	}
	saved, err := deps.Bestiary.Add(r.Context(), c)
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// HandleGetCreature returns one creature and reports in X-Elapsed-Ms how long
// the lookup took. With ?async=true the lookup runs on the worker pool.
func HandleGetCreature(w http.ResponseWriter, r *http.Request, deps *Deps) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	useAsync, err := queryBool(r, "async")
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}

	start := time.Now()
	var c creature.Creature
	if useAsync {
		c, err = getAsync(r, deps, id)
	} else {
		c, err = deps.Bestiary.GetDetails(r.Context(), id)
	}
	elapsed := time.Since(start)
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}

	deps.Log.Debug("creature details served",
		zap.Int32("id", id),
		zap.Bool("async", useAsync),
		zap.Duration("elapsed", elapsed),
	)
	w.Header().Set("X-Elapsed-Ms", strconv.FormatInt(elapsed.Milliseconds(), 10))
	writeJSON(w, http.StatusOK, c)
}

func getAsync(r *http.Request, deps *Deps, id int32) (creature.Creature, error) {
	fut, err := deps.Bestiary.GetDetailsAsync(r.Context(), id)
	if err != nil {
		return creature.Creature{}, err
	}
	c, err := fut.Await(r.Context())
	if err != nil && r.Context().Err() != nil {
		fut.Cancel()
	}
	return c, err
}

func HandleUpdateLevel(w http.ResponseWriter, r *http.Request, deps *Deps) {
	updateField(w, r, deps, "newLevel", deps.Bestiary.UpdateLevel)
}

func HandleUpdatePower(w http.ResponseWriter, r *http.Request, deps *Deps) {
	updateField(w, r, deps, "newPower", deps.Bestiary.UpdatePower)
}

func HandleTrain(w http.ResponseWriter, r *http.Request, deps *Deps) {
	updateField(w, r, deps, "intensity", deps.Bestiary.Train)
}

func updateField(w http.ResponseWriter, r *http.Request, deps *Deps, param string,
	apply func(ctx context.Context, id, value int32) (creature.Creature, error),
) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	value, err := queryInt32(r, param)
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	c, err := apply(r.Context(), id, value)
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func HandleDeleteCreature(w http.ResponseWriter, r *http.Request, deps *Deps) {
	id, err := pathID(r)
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	if err := deps.Bestiary.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFindByType lists every creature of the type; an unknown type is an
// empty list, not an error.
func HandleFindByType(w http.ResponseWriter, r *http.Request, deps *Deps) {
	cs, err := deps.Bestiary.FindByType(r.Context(), r.PathValue("type"))
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// HandleBoostByType replies 204 when no creature has the type.
func HandleBoostByType(w http.ResponseWriter, r *http.Request, deps *Deps) {
	delta, err := queryInt32(r, "delta")
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	cs, err := deps.Bestiary.BoostByType(r.Context(), r.PathValue("type"), delta)
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	if len(cs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}
