// Package cli implements the mentorctl command tree. It is the stand-in view
// layer: gate denials render as distinct messages, never as errors.
package cli

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mentorlink/go-mentor-client/internal/config"
	"github.com/mentorlink/go-mentor-client/platform"
)

// Execute runs the CLI
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	cfg := config.New()

	rootCmd := &cobra.Command{
		Use:           "mentorctl",
		Short:         "Mentoring platform client",
		Long:          "Command-line client for the mentoring platform: sessions, notifications and chat.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			displayAppname(cfg.GetAppName())
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(
		newLoginCmd(cfg),
		newLogoutCmd(cfg),
		newRegisterCmd(cfg),
		newWhoamiCmd(cfg),
		newProfileCmd(cfg),
		newNotificationsCmd(cfg),
		newRoutesCmd(cfg),
		newChatCmd(cfg),
	)
	return rootCmd
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

// buildPlatform constructs the session-context object shared by every command
func buildPlatform(cfg config.Config) (*platform.Platform, error) {
	level := zerolog.WarnLevel
	if cfg.GetEnv() == "DEV" {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	p, err := platform.New(cfg, platform.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	p.OnForcedLogout = func() {
		fmt.Fprintln(os.Stderr, "Session expired, please sign in again.")
	}
	return p, nil
}
