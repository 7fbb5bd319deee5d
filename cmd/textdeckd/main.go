package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pedrosland/textdeck/internal/daemon"
	"github.com/pedrosland/textdeck/internal/session"
	"go.uber.org/fx"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	ownerFlag := flag.String("owner", "", "owner number (overrides config default)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			SessionName: sessionName,
			Owner:       *ownerFlag,
		}),
	)

	app.Run()
}
