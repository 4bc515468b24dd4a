package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/takeonehq/recorder/internal/audio"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio capture and playback devices",
	Run: func(cmd *cobra.Command, args []string) {
		listDevices()
	},
}

func listDevices() {
	devs, err := audio.ListDevices()
	if errors.Is(err, audio.ErrAudioDisabled) {
		fmt.Println("Audio support is not compiled into this build.")
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to enumerate devices: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Capture devices:")
	if len(devs.Capture) == 0 {
		fmt.Println("  (none)")
	}
	for _, d := range devs.Capture {
		printDevice(d)
	}

	fmt.Println("Playback devices:")
	if len(devs.Playback) == 0 {
		fmt.Println("  (none)")
	}
	for _, d := range devs.Playback {
		printDevice(d)
	}
}

func printDevice(d audio.Device) {
	marks := ""
	if d.IsDefault {
		marks += " [default]"
	}
	if d.IsMonitor {
		marks += " [monitor]"
	}
	fmt.Printf("  %s  %s%s\n", d.ID, d.Name, marks)
}
