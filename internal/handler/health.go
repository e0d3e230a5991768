package handler

import (
	"net/http"
	"time"

	"github.com/l1jgo/bestiary/internal/cache"
)

type healthResponse struct {
	Status string      `json:"status"`
	Uptime string      `json:"uptime"`
	Cache  cache.Stats `json:"cache"`
}

func HandleHealth(w http.ResponseWriter, r *http.Request, deps *Deps) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(deps.StartTime).Truncate(time.Second).String(),
		Cache:  deps.Bestiary.CacheStats(),
	})
}
