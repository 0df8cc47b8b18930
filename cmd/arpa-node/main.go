// arpa-node is the committer node for an ARPA randomness group: it runs
// the chain client, DKG runner, and committer RPC server described by
// the internal/node package, driven entirely by its config file.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/arpa-network/arpa-node/internal/lg"
	"github.com/arpa-network/arpa-node/internal/node"
	"github.com/arpa-network/arpa-node/internal/node/core"
)

// Automatically set through -ldflags.
var (
	version   = "master"
	gitCommit = "none"
	buildDate = "unknown"
)

func banner() {
	fmt.Fprintf(os.Stdout, "arpa-node %v (date %v, commit %v)\n", version, buildDate, gitCommit)
}

var configFlag = &cli.StringFlag{
	Name:  "config",
	Value: "config.toml",
	Usage: "Path to the node's TOML config file.",
}

var verboseFlag = &cli.BoolFlag{
	Name:  "verbose",
	Usage: "If set, verbosity is at the debug level.",
}

func main() {
	app := cli.NewApp()
	app.Name = "arpa-node"
	app.Version = version
	app.Usage = "the committer node for an ARPA randomness group"
	app.Flags = []cli.Flag{configFlag, verboseFlag}
	app.Before = func(c *cli.Context) error {
		if c.Bool(verboseFlag.Name) {
			lg.DefaultLevel = lg.DebugLevel
		}
		return nil
	}
	app.Commands = []*cli.Command{startCmd, generateKeypairCmd, registerCmd, pingCmd, versionCmd}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var startCmd = &cli.Command{
	Name:  "start",
	Usage: "Start the node: dial the chain, and run every listener/RPC server until interrupted.",
	Action: func(c *cli.Context) error {
		banner()
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}

		log := lg.Default()
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		n, err := node.New(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}

		log.Infow("node starting", "committer_rpc", cfg.NodeCommitterRPCEndpoint, "management_rpc", cfg.NodeManagementRPCEndpoint)
		return n.Run(ctx)
	},
}

var generateKeypairCmd = &cli.Command{
	Name:  "generate-keypair",
	Usage: "Generate a fresh long-term DKG keypair and print the public key.",
	Action: func(c *cli.Context) error {
		priv, pub := node.GenerateDKGKeyPair()
		privRaw, err := priv.MarshalBinary()
		if err != nil {
			return err
		}
		pubRaw, err := pub.MarshalBinary()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "private: %s\npublic:  %s\n", hex.EncodeToString(privRaw), hex.EncodeToString(pubRaw))
		return nil
	},
}

var registerCmd = &cli.Command{
	Name:  "register",
	Usage: "Register this node's long-term DKG public key with the controller contract.",
	Flags: []cli.Flag{configFlag},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		ctx := context.Background()
		n, err := node.New(ctx, cfg, lg.Default())
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
		hash, err := n.Register(ctx)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
		fmt.Fprintf(os.Stdout, "registered, tx %s\n", hash.Hex())
		return nil
	},
}

var pingCmd = &cli.Command{
	Name:  "ping",
	Usage: "Check the configured node's management RPC endpoint for liveness.",
	Flags: []cli.Flag{configFlag},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		return pingManagementEndpoint(cfg)
	},
}

var versionCmd = &cli.Command{
	Name:  "version",
	Usage: "Print the node's build version.",
	Action: func(c *cli.Context) error {
		banner()
		return nil
	},
}

func loadConfig(c *cli.Context) (*core.Config, error) {
	path := c.String(configFlag.Name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return core.DefaultConfig(), nil
	}
	return core.LoadConfig(path)
}

func pingManagementEndpoint(cfg *core.Config) error {
	token, err := cfg.ManagementRPCToken()
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodGet, "http://"+cfg.NodeManagementRPCEndpoint+"/management/v1/ping", nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping: node returned status %d", resp.StatusCode)
	}
	fmt.Fprintln(os.Stdout, "pong")
	return nil
}
