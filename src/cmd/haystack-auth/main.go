// FILE: haystackauth/src/cmd/haystack-auth/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"haystackauth/src/cmd/haystack-auth/commands"
)

func main() {
	// Cancels an in-flight login on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	router := commands.NewCommandRouter(ctx)
	handled, err := router.Route(os.Args)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(commands.ExitCode(err))
	}
	if !handled {
		_ = router.Help()
		os.Exit(commands.ExitGeneral)
	}
}
