package handler

import (
	"net/http"
	"strconv"
)

const defaultHistoryLimit = 20

// HandleBattle fights ?attacker= against ?defender=. A draw replies 204.
func HandleBattle(w http.ResponseWriter, r *http.Request, deps *Deps) {
	attacker, err := queryInt32(r, "attacker")
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	defender, err := queryInt32(r, "defender")
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	out, err := deps.Bestiary.Battle(r.Context(), attacker, defender)
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	if out.Draw {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func HandleBattleHistory(w http.ResponseWriter, r *http.Request, deps *Deps) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeServiceError(w, r, deps, &paramError{name: "limit", value: raw, want: "a positive integer"})
			return
		}
		limit = n
	}
	recs, err := deps.Bestiary.BattleHistory(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, deps, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
