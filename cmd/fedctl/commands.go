package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"emojifed/internal/federation/address"
	"emojifed/internal/federation/apiclient"
	"emojifed/internal/federation/emoji"
)

func (c *cli) parser() *address.Parser {
	return address.NewParser(address.WithMarker(c.v.GetString("marker")))
}

func (c *cli) parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <address>",
		Short: "Split an emoji address into marker, location and resource path",
		Long: `Parse an emoji address locally, without contacting a server.

Examples:
  fedctl parse '💚☮️🏴👽/bdo/42'
  fedctl parse --marker 🌐 '🌐☮️🏴👽'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, ok := c.parser().Parse(args[0])
			if !ok {
				return fmt.Errorf("%q is not a federated address", args[0])
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{
				"federationPrefix":   addr.Prefix,
				"locationIdentifier": addr.Location.String(),
				"resourcePath":       addr.ResourcePath,
			})
		},
	}
}

type tokenView struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

func (c *cli) tokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens <text>",
		Short: "List the emoji tokens found in text with their byte ranges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			views := make([]tokenView, 0)
			for tok := range emoji.Tokens(args[0]) {
				views = append(views, tokenView{Text: tok.Text, Start: tok.Start, End: tok.End})
			}
			return printJSON(cmd.OutOrStdout(), views)
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register <identifier> <url>",
		Short: "Register a URL for a three-emoji location identifier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			resp, err := client.Register(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func (c *cli) lookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <identifier>",
		Short: "Show the server's local URLs for an identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			resp, err := client.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every identifier the server knows locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			entries, err := client.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
}

func (c *cli) resolveCmd() *cobra.Command {
	var site string
	cmd := &cobra.Command{
		Use:   "resolve <address>",
		Short: "Resolve an emoji address to a URL, discovering it if needed",
		Long: `Ask the server to resolve an emoji address. When the server does not know
the location it walks its neighbours, starting at --site (default: the
server's own URL).

Examples:
  fedctl resolve '💚☮️🏴👽/bdo/42'
  fedctl resolve --site http://wiki.example '💚☮️🏴👽'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			resp, err := client.Resolve(cmd.Context(), args[0], site)
			if err != nil {
				var apiErr *apiclient.APIError
				if errors.As(err, &apiErr) && apiErr.Code == "location_not_found" {
					return fmt.Errorf("no site in the neighbourhood knows %q", args[0])
				}
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.ResolvedURL)
			return err
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site to start discovery from")
	return cmd
}
