package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/takeonehq/recorder/internal/preflight"
)

var doctorFormat string

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check whether this machine can record",
	Run: func(cmd *cobra.Command, args []string) {
		runDoctor()
	},
}

func init() {
	doctorCmd.Flags().StringVar(&doctorFormat, "format", "text", "output format: text or yaml")
}

func runDoctor() {
	cfg := loadConfig()
	cfg.Validate()
	report := preflight.Run(cfg)

	switch doctorFormat {
	case "yaml":
		out, err := yaml.Marshal(report)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render report: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
	case "text":
		printReport(report)
	default:
		fmt.Fprintf(os.Stderr, "Unknown format %q (use text or yaml)\n", doctorFormat)
		os.Exit(1)
	}

	if report.Overall() == preflight.Failed {
		os.Exit(1)
	}
}

func printReport(r *preflight.Report) {
	h := r.Host
	fmt.Printf("Host: %s/%s", h.OS, h.Arch)
	if h.Platform != "" {
		fmt.Printf(" (%s)", h.Platform)
	}
	fmt.Printf(", %d CPUs, %d MB memory\n\n", h.CPUs, h.MemoryMB)

	for _, c := range r.Checks {
		mark := "ok"
		switch c.Status {
		case preflight.Degraded:
			mark = "warn"
		case preflight.Failed:
			mark = "FAIL"
		}
		line := fmt.Sprintf("  [%4s] %s", mark, c.Name)
		if c.Message != "" {
			line += ": " + c.Message
		}
		fmt.Println(line)
	}

	fmt.Printf("\nOverall: %s\n", r.Overall())
}
