package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mentorlink/go-mentor-client/internal/config"
	"github.com/mentorlink/go-mentor-client/internal/utils"
	"github.com/mentorlink/go-mentor-client/realtime"
)

func newChatCmd(cfg config.Config) *cobra.Command {
	var group bool

	cmd := &cobra.Command{
		Use:   "chat [peer-id]",
		Short: "Chat with a user or group over the live channel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPlatform(cfg)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			p.Start(cmd.Context())
			user := p.Session.Current()
			if user == nil {
				fmt.Println("Please sign in to continue.")
				return nil
			}

			// No peer: list the available chat partners
			if len(args) == 0 {
				partners, err := p.Chat.Partners(cmd.Context())
				if err != nil {
					return err
				}
				for _, partner := range partners {
					fmt.Printf("%-24s %s (%s)\n", partner.ID, partner.Name, partner.Role)
				}
				return nil
			}

			peerID := args[0]
			ch := p.Channel()
			if ch == nil {
				return fmt.Errorf("real-time channel unavailable")
			}

			// Merge durable history before the live stream; duplicate ids
			// collapse in the message log
			var history []realtime.Message
			if group {
				if err := ch.JoinRoom(peerID); err != nil {
					return err
				}
				history, err = p.Chat.GroupHistory(cmd.Context(), peerID)
			} else {
				history, err = p.Chat.DirectHistory(cmd.Context(), peerID)
			}
			if err != nil {
				return err
			}
			p.Messages.Merge(history)

			for _, m := range p.Messages.All() {
				printMessage(m)
			}

			p.OnTyping = func(t realtime.Typing) {
				fmt.Fprintf(os.Stderr, "%s is typing...\n", t.Name)
			}

			fmt.Println("Type a message and press enter. Ctrl-D to leave.")
			scanner := bufio.NewScanner(os.Stdin)
			lastLen := p.Messages.Len()
			for scanner.Scan() {
				content := strings.TrimSpace(scanner.Text())
				if content == "" {
					continue
				}
				ch = p.Channel()
				if ch == nil {
					return fmt.Errorf("real-time channel dropped")
				}
				var sendErr error
				if group {
					sendErr = ch.SendMessage(content, nil, utils.Ptr(peerID))
				} else {
					sendErr = ch.SendMessage(content, utils.Ptr(peerID), nil)
				}
				if sendErr != nil {
					return sendErr
				}
				for _, m := range p.Messages.All()[lastLen:] {
					printMessage(m)
				}
				lastLen = p.Messages.Len()
			}
			return scanner.Err()
		},
	}
	cmd.Flags().BoolVar(&group, "group", false, "treat peer-id as a group id")
	return cmd
}

func printMessage(m realtime.Message) {
	fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.Sender.Name, m.Content)
}
