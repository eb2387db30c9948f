/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/http/pprof"

	"github.com/julienschmidt/httprouter"
)

// runtimeProfiles are the named profiles served by pprof.Handler.
var runtimeProfiles = []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"}

// registerProfileHandlers mounts net/http/pprof under <prefix>/pprof/ so a
// running santa can be inspected with go tool pprof.
func registerProfileHandlers(cfg *Config, mux *httprouter.Router) {
	base := cfg.prefix + "/pprof/"

	for _, name := range runtimeProfiles {
		mux.Handler(http.MethodGet, base+name, pprof.Handler(name))
	}

	handlers := map[string]http.HandlerFunc{
		"cmdline": pprof.Cmdline,
		"profile": pprof.Profile,
		"symbol":  pprof.Symbol,
		"trace":   pprof.Trace,
		"":        pprof.Index,
	}
	for path, h := range handlers {
		mux.HandlerFunc(http.MethodGet, base+path, h)
	}

	logf(cfg, "SERVE: Registered %d pprof handlers under %s", len(runtimeProfiles)+len(handlers), base)
}
