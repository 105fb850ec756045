package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"emojifed/internal/federation/apiclient"
)

const defaultServer = "http://localhost:3000"

// cli carries the state shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd(version string) *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:           "fedctl",
		Short:         "Inspect and query emoji federation registries",
		Long:          `fedctl parses emoji addresses locally and talks to an emojifed server to register, look up and resolve them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "",
		"config file (default: ~/.config/fedctl/config.yaml)")
	root.PersistentFlags().StringP("server", "s", "",
		"emojifed server URL (env FEDCTL_SERVER)")
	root.PersistentFlags().String("marker", "",
		"federation marker emoji for local parsing (default 💚)")
	_ = c.v.BindPFlag("server", root.PersistentFlags().Lookup("server"))
	_ = c.v.BindPFlag("marker", root.PersistentFlags().Lookup("marker"))

	root.AddCommand(
		c.parseCmd(),
		c.tokensCmd(),
		c.registerCmd(),
		c.lookupCmd(),
		c.listCmd(),
		c.resolveCmd(),
	)
	return root
}

func (c *cli) initConfig() error {
	c.v.SetDefault("server", defaultServer)
	c.v.SetEnvPrefix("FEDCTL")
	c.v.AutomaticEnv()

	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		c.v.AddConfigPath(filepath.Join(home, ".config", "fedctl"))
		c.v.SetConfigName("config")
		c.v.SetConfigType("yaml")
	}

	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && c.cfgFile == "" {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func (c *cli) client() (*apiclient.Client, error) {
	return apiclient.New(strings.TrimSpace(c.v.GetString("server")))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
