/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Seednode/secretsanta/internal/share"
)

func (c *Config) baseURL() string {
	host := c.bind
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}

	return c.scheme() + "://" + net.JoinHostPort(host, strconv.Itoa(c.port)) + strings.TrimSuffix(c.prefix, "/") + "/"
}

func newShareCmd(cfg *Config) *cobra.Command {
	var base string

	cmd := &cobra.Command{
		Use:   "share",
		Short: "Print a share link for the stored state, with a QR code.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, backend, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			if base == "" {
				base = cfg.baseURL()
			}

			link, err := share.URL(base, store.Snapshot())
			if err != nil {
				return err
			}

			qr, err := share.Terminal(link)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, link)
			fmt.Fprint(out, qr)

			return nil
		},
	}

	cmd.Flags().StringVar(&base, "url", "", "public address of the app (default derived from --bind, --port and --prefix)")

	return cmd
}

func newImportCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <token|url>",
		Short: "Adopt a shared state into local storage, replacing what is there.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, backend, err := openStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			st, err := store.Import(cmd.Context(), share.TokenFromURL(args[0]))
			if err != nil {
				return err
			}

			drawn := "not drawn yet"
			if st.IsDrawDone {
				drawn = "drawn"
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d participants (%s) into %s storage\n", len(st.Users), drawn, cfg.storage)

			return nil
		},
	}
}
