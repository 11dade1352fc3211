package main

import (
	"fmt"
	"time"

	"github.com/pathakanu/eventMemo/internal/reminder"
	"github.com/spf13/cobra"
)

func newRemindersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Manage reminders from the command line",
	}
	cmd.AddCommand(
		newReminderCreateCommand(),
		newReminderListCommand(),
		newReminderUpdateCommand(),
		newReminderDeleteCommand(),
	)
	return cmd
}

func newReminderCreateCommand() *cobra.Command {
	var userID, eventID, at, note string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a reminder for a user and event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dueAt, err := parseDueAt(at)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.reminders.Create(cmd.Context(), reminder.CreateInput{
				UserID:  userID,
				EventID: eventID,
				DueAt:   dueAt,
				Note:    note,
			})
			if err != nil {
				return err
			}
			return printJSON(r)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&eventID, "event", "", "event id")
	cmd.Flags().StringVar(&at, "at", "", "due time, RFC 3339")
	cmd.Flags().StringVar(&note, "note", "", "optional note")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("event")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func newReminderListCommand() *cobra.Command {
	var userID, eventID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's reminders for one event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			reminders, err := a.reminders.List(cmd.Context(), userID, eventID)
			if err != nil {
				return err
			}
			return printJSON(reminders)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&eventID, "event", "", "event id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("event")
	return cmd
}

func newReminderUpdateCommand() *cobra.Command {
	var at, note string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a reminder's due time or note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in reminder.UpdateInput
			if cmd.Flags().Changed("at") {
				dueAt, err := parseDueAt(at)
				if err != nil {
					return err
				}
				in.DueAt = &dueAt
			}
			if cmd.Flags().Changed("note") {
				in.Note = &note
			}
			if in.DueAt == nil && in.Note == nil {
				return fmt.Errorf("nothing to update, pass --at or --note")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.reminders.Update(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return printJSON(r)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "new due time, RFC 3339")
	cmd.Flags().StringVar(&note, "note", "", "new note")
	return cmd
}

func newReminderDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.reminders.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func parseDueAt(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: due time %q is not RFC 3339", reminder.ErrValidation, value)
	}
	return t, nil
}
