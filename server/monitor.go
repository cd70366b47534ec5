package server

import (
	"fmt"
	"io"
	"runtime"
	"runtime/pprof"

	"github.com/gin-gonic/gin"
)

// handleMonitor writes runtime information to the response.
func (s *Server) handleMonitor(rooms Rooms, lobby Lobby) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := new(runtime.MemStats)
		runtime.ReadMemStats(m)
		p := pprof.Lookup("goroutine")
		w := c.Writer
		c.Header("Content-Type", "text/plain; charset=utf-8")
		writeMemoryStats(w, m)
		fmt.Fprintln(w)
		writeLoad(w, rooms.NumGames(), lobby.NumSockets())
		fmt.Fprintln(w)
		writeGoroutineExpectations(w, s.HTTPSServer != nil)
		fmt.Fprintln(w)
		writeGoroutineStackTraces(w, p)
	}
}

// writeMemoryStats writes the memory runtime statistics of the server.
func writeMemoryStats(w io.Writer, m *runtime.MemStats) {
	fmt.Fprintln(w, "--- Memory Stats ---")
	fmt.Fprintln(w, "Alloc (bytes on heap)", m.Alloc)
	fmt.Fprintln(w, "TotalAlloc (total heap size)", m.TotalAlloc)
	fmt.Fprintln(w, "Sys (bytes used to run server)", m.Sys)
	fmt.Fprintln(w, "Live object count (Mallocs - Frees)", m.Mallocs-m.Frees)
}

// writeLoad writes the number of running rooms and open sockets.
func writeLoad(w io.Writer, numGames, numSockets int) {
	fmt.Fprintln(w, "--- Load ---")
	fmt.Fprintln(w, "Running rooms", numGames)
	fmt.Fprintln(w, "Open sockets", numSockets)
}

// writeGoroutineExpectations writes a message about the expected goroutines.
func writeGoroutineExpectations(w io.Writer, hasTLS bool) {
	fmt.Fprintln(w, "--- Goroutine Expectations ---")
	if hasTLS {
		fmt.Fprintln(w, "* a goroutine to run the https (tls) server")
	}
	fmt.Fprintln(w, "* a goroutine listening for interrupt/termination signals so the server can stop gracefully")
	fmt.Fprintln(w, "* a goroutine to run the http server")
	fmt.Fprintln(w, "* a goroutine to run the main procedure")
	fmt.Fprintln(w, "* a goroutine to write profiling information about goroutines")
	fmt.Fprintln(w, "Each open websocket has two (2) goroutines to read and write messages and one (1) waiting for them to stop.")
	fmt.Fprintln(w, "Each running room has a single (1) goroutine.")
}

// writeGoroutineStackTraces writes the goroutine runtime profile's stack traces.
func writeGoroutineStackTraces(w io.Writer, p *pprof.Profile) {
	fmt.Fprintln(w, "--- Goroutine Stack Traces ---")
	p.WriteTo(w, 1)
}
