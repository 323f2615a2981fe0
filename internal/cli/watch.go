package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/watchrun/internal/task"
	"github.com/hupe1980/watchrun/internal/watch"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [group...]",
		Short: "Watch files and run the tasks of matching groups",
		Long: `Watch monitors the files of every configured watch group, or only the
named groups, and runs a group's tasks whenever one of its files changes.

Bursts of changes are debounced per group. Groups run one at a time, each
stopping at its first failing task. Failures are reported and watching
continues until interrupted with Ctrl-C.

No tasks run at startup.`,
		ValidArgsFunction: completeGroupNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, args)
		},
	}

	registerDebounceFlag(cmd)

	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, names []string) error {
	p, err := loadProject(ctx)
	if err != nil {
		return err
	}

	groups, err := selectGroups(p.registry, names)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	status := cmd.ErrOrStderr()
	runner := p.newRunner(cmd.OutOrStdout(), status, status)

	if err := watch.Run(ctx, p.watchOptions(ctx, groups, status), runner); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	return nil
}

// selectGroups returns the named groups, or every group when names is empty.
func selectGroups(reg *task.Registry, names []string) ([]*task.Group, error) {
	if len(names) == 0 {
		groups := reg.Groups()
		if len(groups) == 0 {
			return nil, errors.New("no watch groups configured")
		}

		return groups, nil
	}

	groups := make([]*task.Group, 0, len(names))
	seen := map[string]bool{}

	for _, name := range names {
		g, ok := reg.Group(name)
		if !ok {
			return nil, fmt.Errorf("unknown watch group %q", name)
		}

		if seen[name] {
			continue
		}

		seen[name] = true
		groups = append(groups, g)
	}

	return groups, nil
}

func completeGroupNames(cmd *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	p, err := loadProject(completionContext(cmd))
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	groups := p.registry.Groups()
	names := make([]string, 0, len(groups))

	for _, g := range groups {
		names = append(names, g.Name)
	}

	return names, cobra.ShellCompDirectiveNoFileComp
}
