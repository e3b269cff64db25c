package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/deskops/helpdesk-engine/internal/auth"
	"github.com/deskops/helpdesk-engine/internal/config"
	"github.com/deskops/helpdesk-engine/internal/domain"
	"github.com/deskops/helpdesk-engine/internal/schedule"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "helpdeskctl",
		Short:         "Operator tool for the helpdesk SLA engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTokenCommand(), newNextRunCommand())
	return root
}

// newTokenCommand issues an admin bearer token signed with AUTH_JWT_SECRET.
func newTokenCommand() *cobra.Command {
	var staffID string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin API token for a staff member",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenTTL()
			}
			token, expires, err := auth.NewTokenManager(cfg.Auth.JWTSecret, ttl).GenerateToken(staffID, domain.StaffRoleAdmin)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&staffID, "staff-id", "", "Staff member id (must be an active admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to AUTH_ACCESS_TOKEN_TTL_MINUTES)")
	_ = cmd.MarkFlagRequired("staff-id")
	return cmd
}

// newNextRunCommand previews the upcoming slots of a schedule.
func newNextRunCommand() *cobra.Command {
	var (
		automationType string
		timeOfDay      string
		timezone       string
		dayOfWeek      int
		dayOfMonth     int
		from           string
		count          int
	)

	cmd := &cobra.Command{
		Use:   "next-run",
		Short: "Print the next run times of an automation schedule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := domain.Automation{
				Type:     domain.AutomationType(automationType),
				Schedule: domain.AutomationSchedule{TimeOfDay: timeOfDay, Timezone: timezone},
			}
			if cmd.Flags().Changed("day-of-week") {
				a.Schedule.DayOfWeek = &dayOfWeek
			}
			if cmd.Flags().Changed("day-of-month") {
				a.Schedule.DayOfMonth = &dayOfMonth
			}
			if err := schedule.Validate(a); err != nil {
				return err
			}

			start := time.Now()
			if from != "" {
				parsed, err := time.Parse(time.RFC3339, from)
				if err != nil {
					return fmt.Errorf("--from: %w", err)
				}
				start = parsed
			}

			next := start
			for i := 0; i < count; i++ {
				next = schedule.NextRun(a, next)
				fmt.Fprintln(cmd.OutOrStdout(), next.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&automationType, "type", string(domain.AutomationDailyReport), "Automation type")
	cmd.Flags().StringVar(&timeOfDay, "time", "09:00", "Time of day, HH:mm")
	cmd.Flags().StringVar(&timezone, "tz", "UTC", "IANA timezone")
	cmd.Flags().IntVar(&dayOfWeek, "day-of-week", 0, "Weekday for weekly reports, 0 is Sunday")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 1, "Day of month for monthly reports")
	cmd.Flags().StringVar(&from, "from", "", "Start instant, RFC3339 (defaults to now)")
	cmd.Flags().IntVar(&count, "count", 3, "Number of slots to print")
	return cmd
}
