package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const defaultDBPath = "./data/nftledger.db"

const (
	transactionsSubCmd = "transactions"
	ownerSubCmd        = "owner"
	verifySubCmd       = "verify"
)

type configFlags struct {
	DBPath string `short:"d" long:"db" env:"NFTLEDGER_DB_PATH" description:"Path to the ledger SQLite database"`
}

type transactionsConfig struct {
	Start  uint64 `short:"s" long:"start" description:"First transaction id to print"`
	Length int    `short:"n" long:"length" default:"100" description:"Maximum number of transactions to print"`
	configFlags
}

type ownerConfig struct {
	TokenID uint64 `short:"t" long:"token" required:"true" description:"Token id to look up"`
	configFlags
}

type verifyConfig struct {
	configFlags
}

func parseCommandLine() (subCommand string, config interface{}) {
	cfg := &configFlags{}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)

	transactionsConf := &transactionsConfig{}
	parser.AddCommand(transactionsSubCmd, "Print transactions",
		"Prints a range of the transaction log as JSON lines", transactionsConf)

	ownerConf := &ownerConfig{}
	parser.AddCommand(ownerSubCmd, "Print a token owner",
		"Prints the current owner of a token", ownerConf)

	verifyConf := &verifyConfig{}
	parser.AddCommand(verifySubCmd, "Verify the ledger",
		"Replays the transaction log and checks it against token ownership", verifyConf)

	_, err := parser.Parse()
	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	switch parser.Command.Active.Name {
	case transactionsSubCmd:
		combineFlags(&transactionsConf.configFlags, cfg)
		if transactionsConf.Length <= 0 {
			printErrorAndExit("length must be positive")
		}
		config = transactionsConf
	case ownerSubCmd:
		combineFlags(&ownerConf.configFlags, cfg)
		config = ownerConf
	case verifySubCmd:
		combineFlags(&verifyConf.configFlags, cfg)
		config = verifyConf
	}

	return parser.Command.Active.Name, config
}

func combineFlags(dst, src *configFlags) {
	if dst.DBPath == "" {
		dst.DBPath = src.DBPath
	}
	if dst.DBPath == "" {
		dst.DBPath = defaultDBPath
	}
}

func printErrorAndExit(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
