// Package commands provides the schedula CLI.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFlag  string
	audioFlag   string
	chatFlag    string
	verboseFlag bool

	// Version info (set at build time)
	Version = "0.1.0"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "schedula",
	Short: "Voice-enabled schedule assistant",
	Long: `schedula talks to your schedule assistant by text or voice.

Examples:
  schedula login                      Sign in to the assistant backend
  schedula chat                       Start an interactive conversation
  schedula chat --audio=mock          Try voice input with scripted speech
  schedula schedule --range day       List today's events
  schedula serve                      Run the local control API
  schedula attach --token <t>         Drive a served session from a terminal`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("schedula %s\n", Version)
			return nil
		}
		return cmd.Help()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&audioFlag, "audio", "", "Audio mode: device, mock or none")
	rootCmd.PersistentFlags().StringVar(&chatFlag, "chat", "", "Chat backend: http, gemini or mock")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log to the terminal")
	rootCmd.Flags().Bool("version", false, "Show version and exit")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(attachCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(scheduleCmd)
}
