package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/l1jgo/bestiary/internal/async"
	"github.com/l1jgo/bestiary/internal/creature"
	"go.uber.org/zap"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Status    int       `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Timestamp: time.Now().UTC(), Message: msg, Status: status})
}

// writeServiceError maps err onto a status code and writes it.
func writeServiceError(w http.ResponseWriter, r *http.Request, deps *Deps, err error) {
	switch {
	case creature.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error())
	case creature.IsValidation(err), errors.As(err, new(*paramError)):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, async.ErrQueueFull), errors.Is(err, async.ErrPoolClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		deps.Log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "an unexpected error occurred: "+err.Error())
	}
}

// paramError reports a missing or malformed path or query parameter.
type paramError struct {
	name  string
	value string
	want  string // "an integer" when empty
}

func (e *paramError) Error() string {
	if e.value == "" {
		return fmt.Sprintf("missing parameter %q", e.name)
	}
	want := e.want
	if want == "" {
		want = "an integer"
	}
	return fmt.Sprintf("invalid parameter %q: %q is not %s", e.name, e.value, want)
}

func parseInt32(name, raw string) (int32, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &paramError{name: name}
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, &paramError{name: name, value: raw}
	}
	return int32(n), nil
}

func pathID(r *http.Request) (int32, error) {
	return parseInt32("id", r.PathValue("id"))
}

func queryInt32(r *http.Request, name string) (int32, error) {
	return parseInt32(name, r.URL.Query().Get(name))
}

// queryBool reads an optional boolean query parameter; absent means false.
func queryBool(r *http.Request, name string) (bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &paramError{name: name, value: raw, want: "a boolean"}
	}
	return b, nil
}
