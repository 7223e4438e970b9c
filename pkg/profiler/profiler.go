package profiler

import (
	"log"
	"net/http"
	"net/http/pprof"
	"time"
)

// DefaultAddress is the pprof debug listener address used when the host
// doesn't override it; distinct from the broker's own listen port.
const DefaultAddress = "localhost:6060"

// InitialiseProfiler sets up the HTTP server for pprof profiling.
func InitialiseProfiler(address string) {
	if address == "" {
		address = DefaultAddress
	}
	http.DefaultServeMux = http.NewServeMux()
	go func() {
		server := &http.Server{
			Addr:         address,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		http.HandleFunc("/debug/pprof/", pprof.Index)
		http.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		http.HandleFunc("/debug/pprof/profile", pprof.Profile)
		http.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		http.HandleFunc("/debug/pprof/trace", pprof.Trace)

		log.Println("Profiler is running on", address)
		log.Println(server.ListenAndServe())
	}()
}
