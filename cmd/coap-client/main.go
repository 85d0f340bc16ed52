// Command coap-client sends one CoAP request over UDP and writes the
// response body to stdout or a file.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/flukkyy/libcoap/message/status"
)

// exitCode is 2 when the server answered with an error status and 1 for
// every other failure.
func exitCode(err error) int {
	switch status.Code(err) {
	case status.OK:
		return 0
	case status.Timeout, status.Canceled, status.Unknown:
		return 1
	default:
		return 2
	}
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("coap-client: ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Print(err)
		stop()
		os.Exit(exitCode(err))
	}
}
