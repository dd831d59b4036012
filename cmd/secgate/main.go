package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/secgate/secgate/pkg/config"
	"github.com/secgate/secgate/pkg/constant"
	"github.com/secgate/secgate/pkg/identity"
	"github.com/secgate/secgate/pkg/proxy"
	proxycore "github.com/secgate/secgate/pkg/proxy/core"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = constant.Prog
	app.Usage = constant.Description
	app.Version = proxycore.GetVersion()
	app.UsageText = constant.Prog + " [options]"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Usage:  "path to the configuration file",
			EnvVar: constant.EnvPrefix + "CONFIG_FILE",
		},
		cli.StringFlag{
			Name:   "listen",
			Usage:  "binding interface for the main listener, e.g. {address}:{port}",
			EnvVar: constant.EnvPrefix + "LISTEN",
		},
		cli.BoolFlag{
			Name:   "verbose",
			Usage:  "switch on debug / verbose logging",
			EnvVar: constant.EnvPrefix + "VERBOSE",
		},
	}

	app.Action = func(cliCtx *cli.Context) error {
		cfg := config.NewDefaultConfig()

		if configFile := cliCtx.String("config"); configFile != "" {
			if err := cfg.ReadConfigFile(configFile); err != nil {
				return cli.NewExitError(fmt.Sprintf("unable to read the config file: %s", err), 1)
			}
		}
		if listen := cliCtx.String("listen"); listen != "" {
			cfg.Listen = listen
		}
		if cliCtx.Bool("verbose") {
			cfg.Verbose = true
		}

		// the standalone binary only knows static file backed directories;
		// embedders register their LDAP or database lookups programmatically
		var (
			dirs        []identity.Directory
			provisioner identity.AccountProvisioner
		)
		for _, dirCfg := range cfg.Directories {
			if dirCfg.UsersFile == "" {
				return cli.NewExitError(fmt.Sprintf("directory %s has no users-file, the standalone binary only supports static directories", dirCfg.Name), 1)
			}
			static, err := identity.NewStaticDirectory(dirCfg.UsersFile)
			if err != nil {
				return cli.NewExitError(fmt.Sprintf("unable to load directory %s: %s", dirCfg.Name, err), 1)
			}
			dirs = append(dirs, identity.Directory{
				Name:          dirCfg.Name,
				Users:         static,
				Organizations: static,
			})
			if dirCfg.AllowProvisioning && provisioner == nil {
				provisioner = static
			}
		}

		demux, err := identity.NewDemultiplexer(dirs...)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		svc, err := proxy.NewGateway(proxy.Configuration{
			Gateway:       cfg,
			Demultiplexer: demux,
			Provisioner:   provisioner,
		}, nil)
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return svc.Run(ctx)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
