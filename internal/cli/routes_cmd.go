package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mentorlink/go-mentor-client/access"
	"github.com/mentorlink/go-mentor-client/internal/config"
)

func newRoutesCmd(cfg config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "routes [route]",
		Short: "Show the navigation menu, or check access to one route",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := buildPlatform(cfg)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			p.Start(cmd.Context())
			user := p.Session.Current()

			if len(args) == 1 {
				route := args[0]
				if route == "/" {
					route = access.Landing(user)
					fmt.Printf("Root resolves to %s\n", route)
				}
				printDecision(p.Rules.Decide(user, route), route)
				return nil
			}

			items := p.Rules.Menu(user)
			if len(items) == 0 {
				fmt.Println("Please sign in to continue.")
				return nil
			}
			fmt.Printf("Landing: %s\n\n", access.Landing(user))
			for _, item := range items {
				fmt.Printf("%-12s %s\n", item.Label, item.Route)
			}
			return nil
		},
	}
	return cmd
}

// printDecision renders each denial as its own view, matching the guard
// semantics: verification and approval are not sign-in redirects
func printDecision(d access.Decision, route string) {
	switch d {
	case access.Allow:
		fmt.Printf("Allowed: %s\n", route)
	case access.SignInRequired:
		fmt.Println("Please sign in to continue.")
	case access.VerificationRequired:
		fmt.Println("Email verification required. Check your inbox for the verification link.")
	case access.PendingApproval:
		fmt.Println("Your mentor account is pending admin approval.")
	case access.Forbidden:
		fmt.Printf("Access denied: you don't have permission to view %s.\n", route)
	}
}
