// Copyright 2026 The axus Authors
// This file is part of the axus library.
//
// The axus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The axus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the axus library. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/omnius-labs/axus/log"
	"github.com/omnius-labs/axus/node"
)

const clientIdentifier = "axusd"

var (
	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	logLevelFlag = cli.StringFlag{
		Name:  "loglevel",
		Usage: "Logging level (debug, info, warn, error)",
		Value: "info",
	}
	logJSONFlag = cli.BoolFlag{
		Name:  "logjson",
		Usage: "Emit logs as JSON",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = clientIdentifier
	app.Usage = "axus peer-to-peer content distribution daemon"
	app.Flags = []cli.Flag{configFileFlag, logLevelFlag, logJSONFlag}
	app.Commands = []cli.Command{dumpConfigCommand}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	if err := log.Init(ctx.String(logLevelFlag.Name), ctx.Bool(logJSONFlag.Name)); err != nil {
		return err
	}
	logger := log.New("module", "daemon")

	info := node.NewAppInfo(clientIdentifier)
	logger.Info("----- start -----", "info", info.String())

	cfg := node.DefaultConfig
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			return err
		}
	}

	engine, err := node.NewEngine(cfg)
	if err != nil {
		return err
	}

	rpc, err := node.NewRpcServer(cfg.ListenAddr, info)
	if err != nil {
		engine.Shutdown()
		return err
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		rpc.Close()
	}()

	err = rpc.Serve()
	engine.Shutdown()
	return err
}
