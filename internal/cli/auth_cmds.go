package cli

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mentorlink/go-mentor-client/identity"
	"github.com/mentorlink/go-mentor-client/internal/config"
)

func newLoginCmd(cfg config.Config) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := buildPlatform(cfg)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			if password == "" {
				if password, err = promptPassword("Password: "); err != nil {
					return err
				}
			}
			if err := p.Session.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			user := p.Session.Current()
			fmt.Printf("Signed in as %s (%s)\n", user.Name, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			p, err := buildPlatform(cfg)
			if err != nil {
				return err
			}
			defer p.Shutdown()
			p.Session.Logout()
			fmt.Println("Signed out.")
			return nil
		},
	}
}

func newRegisterCmd(cfg config.Config) *cobra.Command {
	var name, email, password, role string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := buildPlatform(cfg)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			if password == "" {
				if password, err = promptPassword("Password: "); err != nil {
					return err
				}
			}
			user, signedIn, err := p.Session.Register(cmd.Context(), name, email, password, identity.Role(role))
			if err != nil {
				return err
			}
			if !signedIn {
				if user.PendingMentor() {
					fmt.Println("Mentor account created. You will be notified once an admin approves it.")
				} else {
					fmt.Println("Account created. Please sign in.")
				}
				return nil
			}
			fmt.Printf("Registered and signed in as %s (%s)\n", user.Name, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	cmd.Flags().StringVar(&role, "role", string(identity.RoleMentee), "role: MENTEE or MENTOR")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newWhoamiCmd(cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := buildPlatform(cfg)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			p.Start(cmd.Context())
			user := p.Session.Current()
			if user == nil {
				fmt.Println("Not signed in.")
				return nil
			}
			fmt.Printf("%s <%s>\nRole: %s\nStatus: %s\nVerified: %t\n",
				user.Name, user.Email, user.Role, user.Status, user.Verified)
			return nil
		},
	}
}

func newProfileCmd(cfg config.Config) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage the current profile",
	}

	var name, avatar string
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update profile fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := buildPlatform(cfg)
			if err != nil {
				return err
			}
			defer p.Shutdown()

			p.Start(cmd.Context())
			partial := map[string]interface{}{}
			if name != "" {
				partial["name"] = name
			}
			if avatar != "" {
				partial["avatar"] = avatar
			}
			if len(partial) == 0 {
				return fmt.Errorf("nothing to update")
			}
			user, err := p.Session.UpdateProfile(cmd.Context(), partial)
			if err != nil {
				return err
			}
			fmt.Printf("Profile updated: %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
	updateCmd.Flags().StringVar(&name, "name", "", "new display name")
	updateCmd.Flags().StringVar(&avatar, "avatar", "", "new avatar reference")

	profileCmd.AddCommand(updateCmd)
	return profileCmd
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
