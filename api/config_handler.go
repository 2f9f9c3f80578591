package api

import (
	"errors"
	"net/http"

	"github.com/seenimoa/thesisai/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
type ConfigResponse struct {
	Config   *config.Config     `json:"config"`
	Keys     []config.KeyStatus `json:"keys"`
	Problems []string           `json:"problems,omitempty"` // validation failures
}

// handleGetConfig returns the running configuration.
// Sensitive keys (API keys/secrets) are excluded via json:"-" tags.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config:   s.cfg,
			Keys:     config.CheckAPIKeys(s.cfg),
			Problems: problems(s.cfg.Validate()),
		},
	})
}

// handleGetConfigKeys returns the status of all sensitive API keys.
func (s *Server) handleGetConfigKeys(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    config.CheckAPIKeys(s.cfg),
	})
}

// problems flattens the joined validation error into one line per setting.
func problems(err error) []string {
	if err == nil {
		return nil
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []string{err.Error()}
	}
	var out []string
	for _, e := range joined.Unwrap() {
		var ce *config.ConfigError
		if errors.As(e, &ce) {
			out = append(out, ce.Field+": "+ce.Reason)
			continue
		}
		out = append(out, e.Error())
	}
	return out
}
