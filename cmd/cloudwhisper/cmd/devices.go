package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amanullahtanweer/cloudwhisper-flow/internal/apperr"
	"github.com/amanullahtanweer/cloudwhisper-flow/internal/audio/mic"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio input devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		devices, err := mic.ListInputDevices()
		if err != nil {
			return &exitError{code: apperr.ExitCode(err), err: err}
		}
		if len(devices) == 0 {
			fmt.Println("No input devices found.")
			return nil
		}
		for _, d := range devices {
			marker := " "
			if d.IsDefault {
				marker = "*"
			}
			fmt.Printf("%s %-40s %d ch  %.0f Hz\n", marker, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}
