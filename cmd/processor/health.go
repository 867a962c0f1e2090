package main

import (
	"encoding/json"
	"net/http"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/orchestrator"
)

type statusReporter interface {
	State() orchestrator.State
	Status() orchestrator.Status
}

func newHealthMux(o statusReporter) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if o.State() == orchestrator.StateFatal {
			http.Error(w, "fatal", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(o.Status())
	})
	return mux
}
