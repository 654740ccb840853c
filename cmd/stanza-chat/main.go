package main

import (
	"log"
	"os"
	"os/signal"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
	"github.com/stanzadev/stanza-chat/config"
	"github.com/stanzadev/stanza-chat/directory"
	"github.com/stanzadev/stanza-chat/globals"
	"github.com/stanzadev/stanza-chat/hub"
	"github.com/stanzadev/stanza-chat/persistence"
	"github.com/stanzadev/stanza-chat/registry"
	"github.com/stanzadev/stanza-chat/timeline"
)

var (
	configPath = pflag.StringP("config", "c", "", "path to config file or directory")
)

func main() {
	log.SetFlags(0)

	flagSet := config.GetFlagSet()
	pflag.CommandLine.AddFlagSet(flagSet)
	pflag.Parse()

	globalConfig, err := config.ReadConfiguration(*configPath, flagSet)
	if err != nil {
		panic(err)
	}

	globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))

	persister, err := persistence.NewPersister(globalConfig)
	if err != nil {
		panic(err)
	}
	if persister != nil {
		defer persister.Close()
	}

	eventHub := hub.NewHub(globalConfig, persister)
	go eventHub.Run()

	dir := directory.New(persister, eventHub)
	tl := timeline.New(persister, eventHub)
	reg := registry.New(dir, tl, persister, eventHub)

	if persister != nil {
		if err := reg.Restore(); err != nil {
			panic(err)
		}
	}
	if err := dir.Seed(globalConfig.SeedAccounts); err != nil {
		panic(err)
	}
	if globalConfig.PruneSchedule != "" {
		if err := reg.StartPruning(globalConfig.PruneSchedule); err != nil {
			panic(err)
		}
		defer reg.StopPruning()
	}

	globals.AppLogger.Info("engine up", "accounts", len(dir.Accounts()), "rooms", len(reg.Rooms()))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c
	globals.AppLogger.Info("interrupted, shutting down")
}
