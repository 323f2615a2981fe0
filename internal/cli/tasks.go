package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/hupe1980/watchrun/internal/task"
)

type tasksOptions struct {
	format string
	kind   string
}

type tasksResult struct {
	Root   string      `json:"root"`
	Tasks  []taskInfo  `json:"tasks"`
	Groups []groupInfo `json:"groups,omitempty"`
}

type taskInfo struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"`
	Description string   `json:"description,omitempty"`
	Runs        []string `json:"runs,omitempty"`
}

type groupInfo struct {
	Name  string   `json:"name"`
	Files []string `json:"files"`
	Tasks []string `json:"tasks"`
}

func newTasksCommand() *cobra.Command {
	opts := &tasksOptions{}

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List configured tasks and watch groups",
		Long: `Tasks lists every task in declaration order, followed by the builtin
watch task, and every watch group with its file globs and task sequence.

Sequences show the leaf tasks they expand to.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTasks(cmd.Context(), cmd, opts)
		},
	}

	registerFormatFlag(cmd, &opts.format)
	cmd.Flags().StringVar(&opts.kind, "kind", "", "only list tasks of this kind: "+kindList())

	return cmd
}

func kindList() string {
	names := make([]string, 0, len(task.Kinds))
	for _, k := range task.Kinds {
		names = append(names, k.String())
	}

	return strings.Join(names, ", ")
}

func runTasks(ctx context.Context, cmd *cobra.Command, opts *tasksOptions) error {
	if err := checkFormat(opts.format); err != nil {
		return err
	}

	var filter task.Kind

	if opts.kind != "" {
		k, err := task.ParseKind(opts.kind)
		if err != nil {
			return &ExitError{Code: 2, Err: err}
		}

		filter = k
	}

	p, err := loadProject(ctx)
	if err != nil {
		return err
	}

	result := buildTasksResult(p.registry, filter)
	w := cmd.OutOrStdout()

	switch opts.format {
	case formatJSON:
		return renderJSON(w, result)
	case formatYAML:
		return renderYAML(w, result)
	default:
		renderTaskTable(w, result)
		return nil
	}
}

func buildTasksResult(reg *task.Registry, filter task.Kind) tasksResult {
	result := tasksResult{Root: reg.Root()}

	for _, name := range reg.Names() {
		t, _ := reg.Lookup(name)
		if filter != "" && t.Kind != filter {
			continue
		}

		info := taskInfo{Name: t.Name, Kind: t.Kind.String(), Description: t.Description}

		if t.Kind == task.KindSequence {
			info.Runs, _ = reg.Expand(name)
		}

		result.Tasks = append(result.Tasks, info)
	}

	if filter != "" {
		return result
	}

	for _, g := range reg.Groups() {
		result.Groups = append(result.Groups, groupInfo{Name: g.Name, Files: g.Patterns, Tasks: g.Tasks})
	}

	return result
}

func renderJSON(w io.Writer, result any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

func renderYAML(w io.Writer, result any) error {
	data, err := sigsyaml.Marshal(result)
	if err != nil {
		return err
	}

	_, err = w.Write(data)

	return err
}

func renderTaskTable(w io.Writer, result tasksResult) {
	_, _ = fmt.Fprintf(w, "--- Tasks (%d) ---\n", len(result.Tasks))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tKIND\tDESCRIPTION")

	for _, t := range result.Tasks {
		desc := t.Description
		if len(t.Runs) > 0 {
			desc = strings.TrimSpace(desc + " [" + strings.Join(t.Runs, " -> ") + "]")
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Kind, desc)
	}

	_ = tw.Flush()

	if len(result.Groups) == 0 {
		return
	}

	_, _ = fmt.Fprintf(w, "\n--- Watch Groups (%d) ---\n", len(result.Groups))

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "GROUP\tFILES\tTASKS")

	for _, g := range result.Groups {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", g.Name, strings.Join(g.Files, ","), strings.Join(g.Tasks, " -> "))
	}

	_ = tw.Flush()
}
