package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/orderbot/internal/daemon"
	"github.com/matheus3301/orderbot/internal/profile"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides ORDERBOT_PROFILE)")
	configFlag := flag.String("config", "", "bootstrap settings file (default: <profile>/orderbot.toml)")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		fx.NopLogger,
		daemon.Module(daemon.Params{Profile: name, ConfigPath: *configFlag}),
	)

	app.Run()
}
