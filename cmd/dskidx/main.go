// Command dskidx is the launcher-facing CLI: search/list/launch/scan
// plus daemon lifecycle management. Grounded on the teacher's
// cmd/ade-exe-cli/main.go (connect-to-socket, send-command,
// print-response shape) but restructured as thin spf13/cobra subcommands
// over the JSON client, per SPEC_FULL.md §4.11. Each RunE validates
// flags and calls exactly one core entry point; daemon reachability is
// attempted first, with local in-process fallback when --no-daemon is
// set or the daemon is unreachable.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dskidx/dskidx/client"
	"github.com/dskidx/dskidx/internal/config"
	"github.com/dskidx/dskidx/internal/daemonctl"
	"github.com/dskidx/dskidx/internal/executor"
	"github.com/dskidx/dskidx/internal/indexbuild"
	"github.com/dskidx/dskidx/internal/logging"
	"github.com/dskidx/dskidx/internal/model"
	"github.com/dskidx/dskidx/internal/parsecache"
	"github.com/dskidx/dskidx/internal/ranker"
	"github.com/dskidx/dskidx/internal/scanner"
	"github.com/dskidx/dskidx/internal/usagestore"
	"github.com/dskidx/dskidx/protocol"
	"github.com/dskidx/dskidx/server"
)

// Exit codes per spec.md §6 (0/success is Go's implicit default exit code).
const (
	exitGeneric           = 1
	exitInvalidArgs       = 2
	exitDaemonUnreachable = 3
	exitNotFound          = 4
)

var (
	trace          bool
	noDaemon       bool
	respectTryExec bool
	extraPaths     []string
)

func main() {
	root := &cobra.Command{
		Use:           "dskidx",
		Short:         "Query and launch desktop applications",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&trace, "trace", false, "enable trace-level logging")
	root.PersistentFlags().BoolVar(&noDaemon, "no-daemon", false, "always build and query locally, skipping the daemon")
	root.PersistentFlags().BoolVar(&respectTryExec, "respect-try-exec", false, "drop entries whose TryExec does not resolve on PATH")
	root.PersistentFlags().StringArrayVarP(&extraPaths, "path", "p", nil, "additional root directory to scan (repeatable)")

	root.AddCommand(searchCmd(), listCmd(), launchCmd(), scanCmd(), daemonCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	switch e := err.(type) {
	case exitError:
		return e.code
	default:
		return exitGeneric
	}
}

type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }

// invalidArgs wraps cobra's own Args validators so a wrong argument
// count surfaces as exit code 2 rather than the generic 1, per
// spec.md §6's exit code table.
func invalidArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return exitError{exitInvalidArgs, err}
		}
		return nil
	}
}

func roots(cfg *config.Config) []string {
	return append(cfg.DefaultRoots(), extraPaths...)
}

func init() {
	cobra.OnInitialize(func() {
		logging.SetTrace(trace)
	})
}

// emptyModeFlag is a pflag.Value restricting --empty-mode to the two
// orderings spec.md §4.8 defines, rejecting anything else at parse time
// instead of silently falling back.
type emptyModeFlag string

var _ pflag.Value = (*emptyModeFlag)(nil)

func (f *emptyModeFlag) String() string { return string(*f) }
func (f *emptyModeFlag) Type() string   { return "string" }
func (f *emptyModeFlag) Set(v string) error {
	switch model.EmptyMode(v) {
	case model.EmptyModeRecency, model.EmptyModeFrequency:
		*f = emptyModeFlag(v)
		return nil
	default:
		return fmt.Errorf("must be %q or %q", model.EmptyModeRecency, model.EmptyModeFrequency)
	}
}

func searchCmd() *cobra.Command {
	var limit int
	var asJSON bool
	emptyMode := emptyModeFlag(model.EmptyModeRecency)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search indexed applications",
		Args:  invalidArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			cfg := config.Get()
			rs := roots(cfg)

			resp, err := withDaemonOrLocal(cfg, func(c *client.Client) (protocol.Response, error) {
				return c.Search(rs, query, limit, string(emptyMode), respectTryExec)
			}, func() (protocol.Response, error) {
				idx, err := localBuild(cfg, rs)
				if err != nil {
					return protocol.Response{}, err
				}
				usage, _ := openUsage(cfg)
				var usageMap map[string]model.UsageRecord
				if usage != nil {
					usageMap = usage.All()
					usage.Close()
				}
				scored := ranker.Search(idx, query, limit, model.EmptyMode(emptyMode), usageMap, time.Now().UnixNano())
				entries := make([]protocol.ScoredEntry, len(scored))
				for i, se := range scored {
					entries[i] = protocol.FromEntry(se.Entry, se.Score, true)
				}
				return protocol.Entries(entries), nil
			})
			if err != nil {
				return exitError{exitDaemonUnreachable, err}
			}
			return printResponse(resp, asJSON)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	cmd.Flags().Var(&emptyMode, "empty-mode", "ordering for an empty query: recency|frequency")
	return cmd
}

func listCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all visible applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			rs := roots(cfg)

			resp, err := withDaemonOrLocal(cfg, func(c *client.Client) (protocol.Response, error) {
				return c.List(rs, respectTryExec)
			}, func() (protocol.Response, error) {
				idx, err := localBuild(cfg, rs)
				if err != nil {
					return protocol.Response{}, err
				}
				listed := ranker.List(idx)
				entries := make([]protocol.ScoredEntry, len(listed))
				for i, e := range listed {
					entries[i] = protocol.FromEntry(e, 0, false)
				}
				return protocol.Entries(entries), nil
			})
			if err != nil {
				return exitError{exitDaemonUnreachable, err}
			}
			return printResponse(resp, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func launchCmd() *cobra.Command {
	var action string
	cmd := &cobra.Command{
		Use:   "launch <desktop-id>",
		Short: "Launch an application by desktop id",
		Args:  invalidArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			desktopID := args[0]
			cfg := config.Get()
			rs := roots(cfg)

			var actionPtr *string
			if action != "" {
				actionPtr = &action
			}

			resp, err := withDaemonOrLocal(cfg, func(c *client.Client) (protocol.Response, error) {
				return c.Launch(rs, desktopID, actionPtr, respectTryExec)
			}, func() (protocol.Response, error) {
				return localLaunch(cfg, rs, desktopID, actionPtr)
			})
			if err != nil {
				return exitError{exitDaemonUnreachable, err}
			}
			if resp.Type == protocol.TypeError {
				code := exitGeneric
				if resp.Kind == "NotFound" {
					code = exitNotFound
				}
				return exitError{code, fmt.Errorf("%s: %s", resp.Kind, resp.Message)}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&action, "action", "", "desktop action id to launch instead of the default Exec")
	return cmd
}

func scanCmd() *cobra.Command {
	var withParse bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan configured roots, optionally parsing each entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Get()
			rs := roots(cfg)

			if !withParse {
				results := scanner.DedupeByID(scanner.Scan(rs))
				if asJSON {
					return json.NewEncoder(os.Stdout).Encode(results)
				}
				for _, r := range results {
					fmt.Printf("%s\t%s\t%d\t%d\n", r.DesktopID, r.Path, r.Size, r.MtimeNS)
				}
				return nil
			}

			idx, err := localBuild(cfg, rs)
			if err != nil {
				return exitError{exitGeneric, err}
			}
			if asJSON {
				return json.NewEncoder(os.Stdout).Encode(idx.Stats)
			}
			fmt.Printf("scanned=%d cache_hits=%d cache_misses=%d parse_errors=%d hidden=%d try_exec_fails=%d duplicates=%d\n",
				idx.Stats.Scanned, idx.Stats.CacheHits, idx.Stats.CacheMisses, idx.Stats.ParseErrors,
				idx.Stats.Hidden, idx.Stats.TryExecFails, idx.Stats.Duplicates)
			return nil
		},
	}
	cmd.Flags().BoolVar(&withParse, "parse", false, "parse each entry instead of only scanning paths")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the dskidxd daemon",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use: "start",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.Get()
				pid, err := daemonctl.Start("dskidxd", pidPath(cfg))
				if err != nil {
					return exitError{exitGeneric, err}
				}
				fmt.Printf("dskidxd started (pid %d)\n", pid)
				return nil
			},
		},
		&cobra.Command{
			Use: "stop",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.Get()
				if err := daemonctl.Stop(server.SocketPath(cfg), pidPath(cfg)); err != nil {
					return exitError{exitGeneric, err}
				}
				fmt.Println("dskidxd stopped")
				return nil
			},
		},
		&cobra.Command{
			Use: "restart",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.Get()
				pid, err := daemonctl.Restart("dskidxd", server.SocketPath(cfg), pidPath(cfg))
				if err != nil {
					return exitError{exitGeneric, err}
				}
				fmt.Printf("dskidxd restarted (pid %d)\n", pid)
				return nil
			},
		},
		&cobra.Command{
			Use: "status",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg := config.Get()
				st, _ := daemonctl.Status(server.SocketPath(cfg))
				if !st.Running {
					fmt.Println("dskidxd: not running")
					return nil
				}
				fmt.Printf("dskidxd: running (indexes=%d)\n", st.HasIndexCount)
				return nil
			},
		},
	)
	return cmd
}

func pidPath(cfg *config.Config) string {
	dir := cfg.RuntimeDir()
	if dir == "" {
		dir = os.TempDir()
	}
	return dir + "/desktop-indexer.pid"
}

// withDaemonOrLocal tries the daemon first (unless --no-daemon), falling
// back to local execution on any connect/request failure, per spec.md §5.
func withDaemonOrLocal(cfg *config.Config, viaDaemon func(*client.Client) (protocol.Response, error), local func() (protocol.Response, error)) (protocol.Response, error) {
	if !noDaemon {
		if c, err := client.Dial(server.SocketPath(cfg)); err == nil {
			defer c.Close()
			if resp, err := viaDaemon(c); err == nil {
				return resp, nil
			}
			logging.Debugf("daemon request failed, falling back to local execution")
		}
	}
	return local()
}

// localBuild builds an index in-process, degrading rather than failing
// on a non-fatal parse-cache save error per spec.md §7 (the same
// strip-and-log server.buildIndex applies for the daemon path).
func localBuild(cfg *config.Config, rs []string) (*model.Index, error) {
	cache := parsecache.Load(cfg.CacheHome() + "/desktop-indexer")
	key := model.IndexKey{Roots: rs, RespectTryExec: respectTryExec}
	idx, err := indexbuild.Build(key, cache, cfg.Locale())
	if err != nil {
		var saveErr indexbuild.SaveError
		if errors.As(err, &saveErr) {
			logging.Errorf("building index for %v: %v", rs, err)
			return idx, nil
		}
		return nil, err
	}
	return idx, nil
}

func localLaunch(cfg *config.Config, rs []string, desktopID string, action *string) (protocol.Response, error) {
	idx, err := localBuild(cfg, rs)
	if err != nil {
		return protocol.Response{}, err
	}

	var entry model.Entry
	found := false
	for _, e := range idx.Entries {
		if e.DesktopID == desktopID {
			entry, found = e, true
			break
		}
	}
	if !found {
		return protocol.Error("NotFound", "no entry with desktop_id "+desktopID), nil
	}

	var act *model.Action
	if action != nil {
		for i := range entry.Actions {
			if entry.Actions[i].ID == *action {
				act = &entry.Actions[i]
				break
			}
		}
		if act == nil {
			return protocol.Error("NotFound", "no action "+*action+" on "+desktopID), nil
		}
	}

	exec := executor.Default{}
	if _, err := exec.Launch(entry, act); err != nil {
		return protocol.Error("IoError", "launch failed: "+err.Error()), nil
	}

	if usage, err := openUsage(cfg); err == nil && usage != nil {
		_ = usage.RecordLaunch(entry.DesktopID, time.Now().UnixNano())
		usage.Close()
	}
	return protocol.OK(), nil
}

func openUsage(cfg *config.Config) (*usagestore.Store, error) {
	return usagestore.Open(cfg.DataHome() + "/desktop-indexer")
}

func printResponse(resp protocol.Response, asJSON bool) error {
	if resp.Type == protocol.TypeError {
		return exitError{exitGeneric, fmt.Errorf("%s: %s", resp.Kind, resp.Message)}
	}
	if asJSON {
		return json.NewEncoder(os.Stdout).Encode(resp)
	}
	for _, e := range resp.Entries {
		if e.Score != nil {
			fmt.Printf("%s\t%s\t%.1f\n", e.ID, e.Name, *e.Score)
		} else {
			fmt.Printf("%s\t%s\n", e.ID, e.Name)
		}
	}
	return nil
}
