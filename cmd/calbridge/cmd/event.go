package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/theakshaypant/calbridge/internal/core"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Create, edit, or delete events",
}

var eventAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an event",
	Long: `Create an event on a provider calendar.

Timed events take --start and --end ("2006-01-02 15:04", local time).
All-day events take --on and optionally --until (YYYY-MM-DD, both
days inclusive).

Example:
  calbridge event add --provider google --calendar primary \
    --title "Standup" --start "2026-09-01 09:30" --end "2026-09-01 09:45"
  calbridge event add --provider google --calendar primary \
    --title "Offsite" --on 2026-09-10 --until 2026-09-12`,
	RunE: runEventAdd,
}

var eventEditCmd = &cobra.Command{
	Use:   "edit <event-id>",
	Short: "Edit an event",
	Long: `Edit an event. Only the flags you pass change; everything else stays
as it is, including whether the event is all-day.`,
	Args: cobra.ExactArgs(1),
	RunE: runEventEdit,
}

var eventRmCmd = &cobra.Command{
	Use:   "rm <event-id>",
	Short: "Delete an event",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventRm,
}

func init() {
	rootCmd.AddCommand(eventCmd)
	eventCmd.AddCommand(eventAddCmd)
	eventCmd.AddCommand(eventEditCmd)
	eventCmd.AddCommand(eventRmCmd)

	for _, c := range []*cobra.Command{eventAddCmd, eventEditCmd, eventRmCmd} {
		c.Flags().String("calendar", "", "Calendar ID (required)")
		c.MarkFlagRequired("calendar")
	}

	eventAddCmd.Flags().String("title", "", "Event title (required)")
	eventAddCmd.MarkFlagRequired("title")
	eventAddCmd.Flags().String("description", "", "Event description")
	eventAddCmd.Flags().String("location", "", "Event location")
	eventAddCmd.Flags().String("start", "", "Start time (2006-01-02 15:04, local)")
	eventAddCmd.Flags().String("end", "", "End time (2006-01-02 15:04, local)")
	eventAddCmd.Flags().String("on", "", "All-day start date (YYYY-MM-DD)")
	eventAddCmd.Flags().String("until", "", "All-day end date, inclusive (defaults to --on)")

	eventEditCmd.Flags().String("title", "", "New title")
	eventEditCmd.Flags().String("description", "", "New description")
	eventEditCmd.Flags().String("location", "", "New location")
	eventEditCmd.Flags().String("start", "", "New start time (2006-01-02 15:04, local)")
	eventEditCmd.Flags().String("end", "", "New end time (2006-01-02 15:04, local)")
	eventEditCmd.Flags().String("on", "", "New all-day start date (YYYY-MM-DD)")
	eventEditCmd.Flags().String("until", "", "New all-day end date, inclusive")
}

const timedLayout = "2006-01-02 15:04"

func parseTimed(s string) (time.Time, error) {
	t, err := time.ParseInLocation(timedLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse time %q (expected e.g. \"2026-09-01 09:30\")", s)
	}
	return t, nil
}

func runEventAdd(cmd *cobra.Command, args []string) error {
	p, err := providerOrDefault(nil)
	if err != nil {
		return err
	}
	eng, err := app.engineFor(cmd, p)
	if err != nil {
		return err
	}

	calendarID, _ := cmd.Flags().GetString("calendar")
	draft := core.EventDraft{CalendarID: calendarID}
	draft.Title, _ = cmd.Flags().GetString("title")
	draft.Description, _ = cmd.Flags().GetString("description")
	draft.Location, _ = cmd.Flags().GetString("location")

	on, _ := cmd.Flags().GetString("on")
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")

	switch {
	case on != "":
		draft.StartDate = on
		draft.EndDate, _ = cmd.Flags().GetString("until")
		if draft.EndDate == "" {
			draft.EndDate = on
		}
	case startStr != "" && endStr != "":
		if draft.Start, err = parseTimed(startStr); err != nil {
			return err
		}
		if draft.End, err = parseTimed(endStr); err != nil {
			return err
		}
	default:
		return fmt.Errorf("give either --start and --end, or --on for an all-day event")
	}

	created, err := eng.CreateEvent(cmd.Context(), draft)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Created %q\n", created.Title)
	fmt.Printf("  ID: %s\n", created.ID)
	return nil
}

func runEventEdit(cmd *cobra.Command, args []string) error {
	p, err := providerOrDefault(nil)
	if err != nil {
		return err
	}
	eng, err := app.engineFor(cmd, p)
	if err != nil {
		return err
	}

	calendarID, _ := cmd.Flags().GetString("calendar")
	patch := core.EventPatch{CalendarID: calendarID, EventID: args[0]}

	if cmd.Flags().Changed("title") {
		v, _ := cmd.Flags().GetString("title")
		patch.Title = &v
	}
	if cmd.Flags().Changed("description") {
		v, _ := cmd.Flags().GetString("description")
		patch.Description = &v
	}
	if cmd.Flags().Changed("location") {
		v, _ := cmd.Flags().GetString("location")
		patch.Location = &v
	}
	if cmd.Flags().Changed("on") {
		v, _ := cmd.Flags().GetString("on")
		patch.StartDate = &v
		until := v
		if cmd.Flags().Changed("until") {
			until, _ = cmd.Flags().GetString("until")
		}
		patch.EndDate = &until
	}
	if cmd.Flags().Changed("start") {
		v, _ := cmd.Flags().GetString("start")
		t, err := parseTimed(v)
		if err != nil {
			return err
		}
		patch.Start = &t
	}
	if cmd.Flags().Changed("end") {
		v, _ := cmd.Flags().GetString("end")
		t, err := parseTimed(v)
		if err != nil {
			return err
		}
		patch.End = &t
	}

	updated, err := eng.UpdateEvent(cmd.Context(), patch)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Updated %q\n", updated.Title)
	return nil
}

func runEventRm(cmd *cobra.Command, args []string) error {
	p, err := providerOrDefault(nil)
	if err != nil {
		return err
	}
	eng, err := app.engineFor(cmd, p)
	if err != nil {
		return err
	}

	calendarID, _ := cmd.Flags().GetString("calendar")
	if err := eng.DeleteEvent(cmd.Context(), calendarID, args[0]); err != nil {
		return err
	}

	fmt.Println("✓ Event deleted")
	return nil
}
