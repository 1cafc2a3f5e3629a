package main

import (
	"fmt"
	"log"
	"os"

	"github.com/racp/ocserv-agent/internal/agent"
	"github.com/racp/ocserv-agent/internal/platform"
	"github.com/racp/ocserv-agent/pkg/config"
	"github.com/spf13/pflag"
)

func main() {
	var (
		envFiles    []string
		showVersion bool
	)
	flags := pflag.NewFlagSet("ocserv-agent", pflag.ExitOnError)
	flags.StringSliceVar(&envFiles, "env-file", []string{".env"}, "KEY=VALUE files loaded before reading the environment (missing files are skipped)")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	_ = flags.Parse(os.Args[1:])

	if showVersion {
		fmt.Printf("%s %s (api %s)\n", agent.Name, agent.Version, agent.APIVersion)
		return
	}

	if err := config.LoadDotEnv(envFiles...); err != nil {
		log.Fatalf("ocserv-agent: %v", err)
	}
	cfg, err := config.Load("ocserv-agent")
	if err != nil {
		log.Fatalf("ocserv-agent: %v", err)
	}
	if err := platform.RunAgent(cfg); err != nil {
		log.Fatalf("ocserv-agent failed: %v", err)
	}
}
