package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

// Lean health sidecar: answers its own probe directly and relays
// /ready to the chat server's readiness endpoint.
func main() {
	addr := flag.String("addr", ":8081", "listen address for the health sidecar")
	upstream := flag.String("upstream", "http://127.0.0.1:4000", "chat server base URL")
	ver := flag.String("version", "dev", "version string to return")
	flag.Parse()

	probe := &fasthttp.Client{ReadTimeout: 2 * time.Second, WriteTimeout: 2 * time.Second}

	h := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/health", "/healthz":
			ctx.Response.Header.Set("Content-Type", "application/json")
			ctx.SetStatusCode(fasthttp.StatusOK)
			_, _ = ctx.WriteString(fmt.Sprintf("{\"status\":\"ok\",\"version\":\"%s\"}", *ver))
		case "/ready":
			status, _, err := probe.GetTimeout(nil, *upstream+"/readyz", 2*time.Second)
			ctx.Response.Header.Set("Content-Type", "application/json")
			if err != nil || status != fasthttp.StatusOK {
				ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
				_, _ = ctx.WriteString(`{"status":"upstream not ready"}`)
				return
			}
			ctx.SetStatusCode(fasthttp.StatusOK)
			_, _ = ctx.WriteString(`{"status":"ok"}`)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	fmt.Printf("health sidecar listening on %s\n", *addr)
	srv := &fasthttp.Server{
		Handler:            h,
		Name:               "chatline-health",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	if err := srv.ListenAndServe(*addr); err != nil {
		fmt.Printf("fasthttp server exit: %v\n", err)
	}
}
