// Command echoserver runs the reference echo upstream used in mcgravity's
// integration scenarios: a single MCP server exposing one "echo" tool over
// the legacy SSE transport.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/mcgravity/mcgravity/example/echo"
)

func main() {
	addr := os.Getenv("ECHO_ADDR")
	if addr == "" {
		addr = "localhost:4000"
	}

	fmt.Printf("echo upstream listening on http://%s/sse\n", addr)
	if err := http.ListenAndServe(addr, echo.Handler()); err != nil {
		fmt.Fprintln(os.Stderr, "echoserver:", err)
		os.Exit(1)
	}
}
