package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stanzadev/stanza-chat/config"
	"github.com/stanzadev/stanza-chat/globals"
	"github.com/stanzadev/stanza-chat/persistence"
	"github.com/stanzadev/stanza-chat/types"
)

// A very simple CLI tool for the administration of persisted accounts and rooms.

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
	if persister == nil {
		panic("no persistence configured")
	}
	defer persister.Close()

	var cmdShow = &cobra.Command{
		Use:   "show",
		Short: "Show room or account",
		Long:  `show is for printing account or room information with a given account/room id.`,
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdShowRooms = &cobra.Command{
		Use:   "rooms",
		Short: "Show rooms",
		Long:  `show rooms lists all persisted rooms.`,
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			rooms, err := persister.GetRooms()
			if err != nil {
				globals.AppLogger.Error("could not get rooms", "error", err)
				return
			}
			r, err := json.Marshal(rooms)
			if err != nil {
				globals.AppLogger.Error("could not marshal rooms", "error", err)
				return
			}
			fmt.Println(string(r))
		},
	}
	var cmdShowRoom = &cobra.Command{
		Use:   "room [room id]",
		Short: "Show room",
		Long:  `show room prints detail information about the room with the given id, including its messages.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			room := types.Room{Id: args[0]}
			err := persister.GetRoom(&room)
			if err != nil {
				globals.AppLogger.Error("could not get room", "error", err)
				return
			}
			msgs, err := persister.GetMessages(room.Id)
			if err != nil {
				globals.AppLogger.Error("could not get messages", "error", err)
				return
			}
			out := struct {
				Room     *types.Room      `json:"room"`
				Messages []*types.Message `json:"messages"`
			}{Room: &room, Messages: msgs}
			r, err := json.Marshal(&out)
			if err != nil {
				globals.AppLogger.Error("could not marshal room", "error", err)
				return
			}
			fmt.Println(string(r))
		},
	}
	var cmdShowAccounts = &cobra.Command{
		Use:   "accounts",
		Short: "Show accounts",
		Long:  `show accounts lists all persisted accounts.`,
		Args:  cobra.MinimumNArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			accounts, err := persister.GetAccounts()
			if err != nil {
				globals.AppLogger.Error("could not get accounts", "error", err)
				return
			}
			a, err := json.Marshal(accounts)
			if err != nil {
				globals.AppLogger.Error("could not marshal accounts", "error", err)
				return
			}
			fmt.Println(string(a))
		},
	}
	var cmdShowAccount = &cobra.Command{
		Use:   "account [account id]",
		Short: "Show account",
		Long:  `show account prints detail information about the account with the given id.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			account := types.Account{Id: args[0]}
			err := persister.GetAccount(&account)
			if err != nil {
				globals.AppLogger.Error("could not get account", "error", err)
				return
			}
			a, err := json.Marshal(&account)
			if err != nil {
				globals.AppLogger.Error("could not marshal account", "error", err)
				return
			}
			fmt.Println(string(a))
		},
	}
	var cmdDelete = &cobra.Command{
		Use:   "delete",
		Short: "delete room or account",
		Long:  `delete removes the account or room with a given account/room id.`,
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdDeleteRoom = &cobra.Command{
		Use:   "room [room id]",
		Short: "Delete room",
		Long:  `delete room removes the room with the given id and all its messages.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			room := types.Room{Id: args[0]}
			err := persister.DeleteRoom(&room)
			if err != nil {
				globals.AppLogger.Error("could not delete room", "error", err)
				return
			}
		},
	}
	var cmdDeleteAccount = &cobra.Command{
		Use:   "account [account id]",
		Short: "Delete account",
		Long:  `delete account removes the account with the given id.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			account := types.Account{Id: args[0]}
			err := persister.DeleteAccount(&account)
			if err != nil {
				globals.AppLogger.Error("could not delete account", "error", err)
				return
			}
		},
	}
	var cmdSet = &cobra.Command{
		Use:   "set",
		Short: "create/update room or account",
		Long:  `set creates or updates a room or account.`,
		Args:  cobra.MinimumNArgs(0),
	}
	var cmdSetRoom = &cobra.Command{
		Use:   "room [room definition]",
		Short: "Set room",
		Long:  `set room creates or updates a room. If the room definition is "-", the definition is read from STDIN.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var r io.Reader
			if args[0] == "-" {
				r = os.Stdin
			} else {
				r = bytes.NewReader([]byte(args[0]))
			}
			dec := json.NewDecoder(r)
			room := types.Room{}
			err := dec.Decode(&room)
			if err != nil {
				globals.AppLogger.Error("could not decode room", "error", err)
				return
			}
			if room.Id == "" {
				globals.AppLogger.Error("no room id")
				return
			}
			err = persister.StoreRoom(&room)
			if err != nil {
				globals.AppLogger.Error("could not store room", "error", err)
				return
			}
		},
	}
	var cmdSetAccount = &cobra.Command{
		Use:   "account [account definition]",
		Short: "Set account",
		Long:  `set account creates or updates an account with the given definition. If the definition is "-", it is read from STDIN.`,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			var r io.Reader
			if args[0] == "-" {
				r = os.Stdin
			} else {
				r = bytes.NewReader([]byte(args[0]))
			}
			dec := json.NewDecoder(r)
			account := types.Account{}
			err := dec.Decode(&account)
			if err != nil {
				globals.AppLogger.Error("could not decode account", "error", err)
				return
			}
			if account.Id == "" {
				globals.AppLogger.Error("no account id")
				return
			}
			err = persister.StoreAccount(&account)
			if err != nil {
				globals.AppLogger.Error("could not store account", "error", err)
				return
			}
		},
	}
	var rootCmd = &cobra.Command{Use: "stanza-chat-admin"}
	rootCmd.AddCommand(cmdShow)
	rootCmd.AddCommand(cmdDelete)
	rootCmd.AddCommand(cmdSet)
	cmdShow.AddCommand(cmdShowRooms, cmdShowRoom, cmdShowAccounts, cmdShowAccount)
	cmdDelete.AddCommand(cmdDeleteRoom, cmdDeleteAccount)
	cmdSet.AddCommand(cmdSetRoom, cmdSetAccount)
	rootCmd.Execute()
}
