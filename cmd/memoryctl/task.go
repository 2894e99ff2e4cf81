package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/untoldecay/semanticmemory/internal/types"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create, inspect and transition tasks in the task/lock state machine (C7)",
}

func init() {
	rootCmd.AddCommand(taskCmd)
}

// --- create ---

var (
	taskCreateOwner string
	taskCreateDue   string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create [title]",
	Short: "Create a new task",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := ""
		if len(args) == 1 {
			title = args[0]
		}
		if title == "" {
			if err := huh.NewForm(huh.NewGroup(
				huh.NewInput().Title("Title").Value(&title).Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("title is required")
					}
					return nil
				}),
				huh.NewInput().Title("Owner (optional)").Value(&taskCreateOwner),
			)).Run(); err != nil {
				return fmt.Errorf("task create aborted: %w", err)
			}
		}

		store, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		task, err := store.CreateTask(cmd.Context(), title, taskCreateOwner)
		if err != nil {
			return fmt.Errorf("create task failed: %w", err)
		}

		// due/defer scheduling is a Non-goal for the state machine itself (§4.9); a
		// parsed --due string is recorded as a "scheduled" event, not a Task field.
		if taskCreateDue != "" {
			w := when.New(nil)
			w.Add(en.All...)
			w.Add(common.All...)
			r, err := w.Parse(taskCreateDue, time.Now())
			if err != nil {
				return fmt.Errorf("failed to parse --due %q: %w", taskCreateDue, err)
			}
			if r != nil {
				_, err := store.AppendEvent(cmd.Context(), task.TaskID, "scheduled", taskCreateOwner, map[string]any{
					"due_at": r.Time.Format(time.RFC3339),
					"due_input": taskCreateDue,
				})
				if err != nil {
					return fmt.Errorf("failed to record scheduled event: %w", err)
				}
			}
		}

		return printTask(cmd, task)
	},
}

// --- show ---

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show a single task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		task, err := store.GetTask(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("show task failed: %w", err)
		}
		return printTask(cmd, task)
	},
}

// --- list ---

var (
	taskListStatus string
	taskListLimit  int
)

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		tasks, err := store.ListTasks(cmd.Context(), taskListStatus, taskListLimit)
		if err != nil {
			return fmt.Errorf("list tasks failed: %w", err)
		}

		if outputFormat == "json" {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(tasks)
		}

		rows := make([][]string, len(tasks))
		for i, task := range tasks {
			rows[i] = []string{task.TaskID, task.Title, string(task.Status), task.Owner, strconv.Itoa(task.Version)}
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"TASK ID", "TITLE", "STATUS", "OWNER", "VERSION"}, rows))
		return nil
	},
}

// --- transition ---

var (
	transitionFrom     string
	transitionActor    string
	transitionReason   string
	transitionEvidence string
	transitionVersion  int
)

var taskTransitionCmd = &cobra.Command{
	Use:   "transition [task-id] [to-status]",
	Short: "Move a task to a new status via optimistic-CAS transition",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		to := types.TaskStatus(args[1])
		if !to.IsValid() {
			return fmt.Errorf("invalid target status %q", args[1])
		}

		store, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		task, err := store.Transition(cmd.Context(), args[0], types.TaskStatus(transitionFrom), to,
			transitionActor, transitionReason, transitionEvidence, transitionVersion)
		if err != nil {
			return fmt.Errorf("transition failed: %w", err)
		}
		return printTask(cmd, task)
	},
}

// --- lock / unlock ---

var taskLockCmd = &cobra.Command{
	Use:   "lock [task-id] [resource...]",
	Short: "Assign resource locks to a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		ids, err := store.AssignLocks(cmd.Context(), args[0], args[1:])
		if err != nil {
			return fmt.Errorf("lock failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "assigned %d lock(s)\n", len(ids))
		return nil
	},
}

var taskUnlockCmd = &cobra.Command{
	Use:   "unlock [task-id]",
	Short: "Release all active locks held by a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := store.ReleaseLocks(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("unlock failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "released %d lock(s)\n", n)
		return nil
	},
}

// --- depends-on ---

var taskDependsOnCmd = &cobra.Command{
	Use:   "depends-on [task-id] [depends-on-task-id...]",
	Short: "Record that a task cannot enter in_progress until its dependencies are done",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.AddDependencies(cmd.Context(), args[0], args[1:]); err != nil {
			return fmt.Errorf("add dependencies failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "dependencies recorded")
		return nil
	},
}

// --- events ---

var (
	eventsActor string
	eventsLimit int
)

var taskEventsCmd = &cobra.Command{
	Use:   "events [task-id]",
	Short: "List a task's append-only event log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := newService(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.ListEvents(cmd.Context(), args[0], eventsLimit)
		if err != nil {
			return fmt.Errorf("list events failed: %w", err)
		}
		if eventsActor != "" {
			filtered := events[:0]
			for _, e := range events {
				if e.Actor == eventsActor {
					filtered = append(filtered, e)
				}
			}
			events = filtered
		}

		if outputFormat == "json" {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(events)
		}

		rows := make([][]string, len(events))
		for i, e := range events {
			rows[i] = []string{e.ID, e.EventType, e.Actor, e.CreatedAt.Format(time.RFC3339)}
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"EVENT ID", "TYPE", "ACTOR", "CREATED AT"}, rows))
		return nil
	},
}

func printTask(cmd *cobra.Command, task *types.Task) error {
	if outputFormat == "json" {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(task)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  owner=%s  v%d\n",
		headerStyle.Render(task.TaskID), task.Title, statusStyle(task.Status).Render(string(task.Status)),
		task.Owner, task.Version)
	return nil
}

func statusStyle(s types.TaskStatus) lipgloss.Style {
	switch s {
	case types.TaskDone:
		return passStyle
	case types.TaskFailed, types.TaskBlocked:
		return warnStyle
	default:
		return mutedStyle
	}
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskCreateOwner, "owner", "", "task owner")
	taskCreateCmd.Flags().StringVar(&taskCreateDue, "due", "", "human-readable due date (e.g. \"next friday\"), recorded as a scheduled event")

	taskListCmd.Flags().StringVar(&taskListStatus, "status", "", "filter by status")
	taskListCmd.Flags().IntVar(&taskListLimit, "limit", 50, "max rows")

	taskTransitionCmd.Flags().StringVar(&transitionFrom, "from", "", "expected current status")
	taskTransitionCmd.Flags().StringVar(&transitionActor, "actor", "", "actor performing the transition")
	taskTransitionCmd.Flags().StringVar(&transitionReason, "reason", "", "reason recorded on the transition event")
	taskTransitionCmd.Flags().StringVar(&transitionEvidence, "evidence", "", "evidence recorded on the transition event")
	taskTransitionCmd.Flags().IntVar(&transitionVersion, "expected-version", 0, "expected row version for the CAS")

	taskEventsCmd.Flags().StringVar(&eventsActor, "actor", "", "filter events by actor")
	taskEventsCmd.Flags().IntVar(&eventsLimit, "limit", 100, "max rows")

	taskCmd.AddCommand(taskCreateCmd, taskShowCmd, taskListCmd, taskTransitionCmd,
		taskLockCmd, taskUnlockCmd, taskDependsOnCmd, taskEventsCmd)
}
