package client

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func apiFrom(baseURL BaseURLFunc) *API { return NewAPI(baseURL()) }

// newReportCommand constructs the `report` subcommand.
func newReportCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [message...]",
		Short: "Record a message (deduplicated against the window)",
		RunE: func(cmd *cobra.Command, args []string) error {
			sev, _ := cmd.Flags().GetString("severity")
			prog, _ := cmd.Flags().GetString("progname")
			text, _ := cmd.Flags().GetString("message")
			bt, _ := cmd.Flags().GetString("backtrace")
			kvs, _ := cmd.Flags().GetStringArray("env")
			if text == "" {
				text = strings.Join(args, " ")
			}
			env, err := parseEnvFlags(kvs)
			if err != nil {
				return err
			}
			req := ReportRequest{Severity: sev, Progname: prog, Message: text, Backtrace: bt, Env: env}
			if err := apiFrom(baseURL).Report(cmd.Context(), req); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	cmd.Flags().StringP("severity", "s", "error", "Severity: debug|info|warn|error|fatal|unknown or 0-5")
	cmd.Flags().StringP("progname", "p", "", "Program name")
	cmd.Flags().StringP("message", "m", "", "Message text (defaults to the positional args)")
	cmd.Flags().String("backtrace", "", "Backtrace text")
	cmd.Flags().StringArray("env", nil, "Env entry key=value (repeatable; params.<name>=value for request params)")
	return cmd
}

// newLatestCommand constructs the `latest` subcommand.
func newLatestCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "List the newest messages, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			sev, _ := cmd.Flags().GetString("severity")
			before, _ := cmd.Flags().GetString("before")
			after, _ := cmd.Flags().GetString("after")
			search, _ := cmd.Flags().GetString("search")
			regex, _ := cmd.Flags().GetBool("regex")
			asJSON, _ := cmd.Flags().GetBool("json")
			followOn, _ := cmd.Flags().GetBool("follow")
			interval, _ := cmd.Flags().GetDuration("interval")

			q := LatestQuery{Limit: limit, Severity: sev, Before: before, After: after, Search: search, Regex: regex}
			api := apiFrom(baseURL)
			out := cmd.OutOrStdout()
			if followOn {
				if before != "" {
					return fmt.Errorf("--follow cannot be combined with --before")
				}
				return follow(cmd.Context(), api, q, interval, out)
			}
			page, err := api.Latest(cmd.Context(), q)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(out, page)
			}
			for _, m := range page.Messages {
				writeLine(out, m)
			}
			_, _ = fmt.Fprintf(out, "-- %d shown, %d in window\n", len(page.Messages), page.Total)
			return nil
		},
	}
	cmd.Flags().IntP("limit", "l", 0, "Max rows (server default when 0)")
	cmd.Flags().String("severity", "", "Comma separated severities to include")
	cmd.Flags().String("before", "", "Only rows older than this key")
	cmd.Flags().String("after", "", "Only rows newer than this key")
	cmd.Flags().String("search", "", "Substring to look for in message text")
	cmd.Flags().Bool("regex", false, "Treat --search as a regular expression")
	cmd.Flags().Bool("json", false, "Print the raw JSON page")
	cmd.Flags().BoolP("follow", "f", false, "Keep polling for newer rows")
	cmd.Flags().Duration("interval", 2*time.Second, "Poll interval for --follow")
	return cmd
}

// follow prints pages newer than the last row seen until ctx ends. If the
// cursor row leaves the window, it starts over from the newest page.
func follow(ctx context.Context, api *API, q LatestQuery, interval time.Duration, out io.Writer) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	last := q.After
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		q.After = last
		page, err := api.Latest(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, m := range page.Messages {
			writeLine(out, m)
			last = m.Key
		}
		if page.Stale {
			_, _ = fmt.Fprintln(out, "-- cursor left the window; resyncing")
			last = ""
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// newGetCommand constructs the `get` subcommand.
func newGetCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Show one message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := apiFrom(baseURL).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				return writeJSON(cmd.OutOrStdout(), m)
			}
			writeDetail(cmd.OutOrStdout(), m)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print raw JSON")
	return cmd
}

// newProtectCommand constructs the `protect` subcommand.
func newProtectCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "protect KEY",
		Short: "Keep a message through clear and eviction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiFrom(baseURL).Protect(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "protected:", args[0])
			return nil
		},
	}
}

// newUnprotectCommand constructs the `unprotect` subcommand.
func newUnprotectCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "unprotect KEY",
		Short: "Release a protected message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiFrom(baseURL).Unprotect(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "unprotected:", args[0])
			return nil
		},
	}
}

// newCountCommand constructs the `count` subcommand.
func newCountCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print how many messages are in the window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := apiFrom(baseURL).Count(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

// newClearCommand constructs the `clear` subcommand.
func newClearCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove unprotected messages (requires --confirm)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			confirm, _ := cmd.Flags().GetBool("confirm")
			all, _ := cmd.Flags().GetBool("all")
			if !confirm {
				return fmt.Errorf("refusing to clear without --confirm")
			}
			if err := apiFrom(baseURL).Clear(cmd.Context(), all); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
	cmd.Flags().Bool("confirm", false, "Confirm the clear")
	cmd.Flags().Bool("all", false, "Also remove protected messages")
	return cmd
}

// newHealthCommand constructs the `health` subcommand.
func newHealthCommand(baseURL BaseURLFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the server is serving",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := apiFrom(baseURL).Health(cmd.Context()); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "status:", "OK")
			return nil
		},
	}
}
