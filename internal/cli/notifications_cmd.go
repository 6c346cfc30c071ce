package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mentorlink/go-mentor-client/internal/config"
)

func newNotificationsCmd(cfg config.Config) *cobra.Command {
	var markRead string
	var markAllRead bool

	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Show the merged notification feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := buildPlatform(cfg)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			p.Start(cmd.Context())
			if p.Session.Current() == nil {
				fmt.Println("Please sign in to continue.")
				return nil
			}

			if err := p.Feed.Refresh(cmd.Context()); err != nil {
				return err
			}

			if markAllRead {
				if err := p.Feed.MarkAllRead(cmd.Context()); err != nil {
					return err
				}
			} else if markRead != "" {
				if err := p.Feed.MarkRead(cmd.Context(), markRead); err != nil {
					return err
				}
			}

			entries := p.Feed.Entries()
			if len(entries) == 0 {
				fmt.Println("No notifications")
				return nil
			}
			fmt.Printf("Unread: %s\n\n", p.Feed.DisplayCount())
			for _, e := range entries {
				marker := " "
				if !e.Read && !e.JustNow {
					marker = "*"
				}
				when := "Just now"
				if !e.JustNow {
					when = e.CreatedAt.Local().Format("2006-01-02 15:04")
				}
				fmt.Printf("%s [%s] %s: %s (%s)\n", marker, e.Kind, e.Title, e.Message, when)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&markRead, "mark-read", "", "acknowledge one notification by id")
	cmd.Flags().BoolVar(&markAllRead, "mark-all-read", false, "acknowledge everything and clear live entries")
	return cmd
}
