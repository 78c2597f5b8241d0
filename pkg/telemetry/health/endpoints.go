package health

import (
	"encoding/json"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// LivenessHandler returns the liveness probe handler.
//
//	{"status": "ok", "timestamp": "2026-01-01T10:30:00Z"}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns the readiness probe handler. It answers 200 when
// every check passes and 503 otherwise.
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "rules": {"status": "ok"},
//	        "snapshot": {"status": "unhealthy", "message": "no snapshot published yet"}
//	    },
//	    "timestamp": "2026-01-01T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.CheckReadiness(r.Context())

		code := http.StatusOK
		if status.Status != StatusReady {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler returns a handler reporting build information.
func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	info := VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, info)
	}
}

// Mount registers the probes on r:
//   - /health/live: liveness
//   - /health/ready: readiness
//   - /version: build information
//
// GET and HEAD are accepted; HEAD omits the body.
func Mount(r chi.Router, checker *Checker, version, commit, buildTime string) {
	live := checker.LivenessHandler()
	ready := checker.ReadinessHandler()
	ver := VersionHandler(version, commit, buildTime)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", live)
		r.Head("/live", live)
		r.Get("/ready", ready)
		r.Head("/ready", ready)
	})
	r.Get("/version", ver)
	r.Head("/version", ver)
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(v)
	}
}
