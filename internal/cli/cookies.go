package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/riposte/internal/config"
	"github.com/wesleyorama2/riposte/internal/cookies"
)

func newCookiesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cookies",
		Short: "Inspect and edit the persistent cookie jar",
	}
	cmd.AddCommand(newCookiesListCmd(a), newCookiesAddCmd(a), newCookiesDeleteCmd(a), newCookiesClearCmd(a))
	return cmd
}

func newCookiesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every stored cookie",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.store().List()
			if err != nil {
				return a.fail(cmd, err)
			}
			fmt.Fprint(cmd.OutOrStdout(), a.formatter(false).FormatCookies(list))
			return nil
		},
	}
}

func newCookiesAddCmd(a *app) *cobra.Command {
	var (
		c       cookies.Cookie
		expires string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or replace a cookie",
		Long: `Add a cookie to the jar, replacing any cookie with the same domain, path
and name. --expires takes an RFC 3339 timestamp or a duration from now
("30m", "2 hours"); without it the cookie is a session cookie.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if expires != "" {
				at, err := parseExpiry(expires, time.Now())
				if err != nil {
					return err
				}
				c.Expires = &at
			}
			if err := a.store().Upsert(c); err != nil {
				return a.fail(cmd, err)
			}
			a.logger.Info().Str("domain", c.Domain).Str("name", c.Name).Msg("cookie stored")
			return nil
		},
	}

	cmd.Flags().StringVar(&c.Name, "name", "", "Cookie name")
	cmd.Flags().StringVar(&c.Value, "value", "", "Cookie value")
	cmd.Flags().StringVar(&c.Domain, "domain", "", "Domain the cookie is sent to, subdomains included")
	cmd.Flags().StringVar(&c.Path, "path", "/", "Path prefix the cookie is sent to")
	cmd.Flags().StringVar(&expires, "expires", "", "Expiry as RFC 3339 timestamp or duration from now")
	cmd.Flags().BoolVar(&c.Secure, "secure", false, "Send only over https")
	cmd.Flags().BoolVar(&c.HTTPOnly, "http-only", false, "Mark the cookie HttpOnly")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("domain")
	return cmd
}

func newCookiesDeleteCmd(a *app) *cobra.Command {
	var sel cookies.Selector

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the cookie with the given domain, path and name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store().Delete(sel); err != nil {
				return a.fail(cmd, err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sel.Domain, "domain", "", "Cookie domain")
	cmd.Flags().StringVar(&sel.Path, "path", "/", "Cookie path")
	cmd.Flags().StringVar(&sel.Name, "name", "", "Cookie name")
	return cmd
}

func newCookiesClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cookie from the jar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store().Clear(); err != nil {
				return a.fail(cmd, err)
			}
			return nil
		},
	}
}

// parseExpiry accepts an RFC 3339 timestamp or a duration added to now.
func parseExpiry(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := config.ParseDuration(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry %q: want RFC 3339 time or duration", s)
	}
	return now.Add(d), nil
}
