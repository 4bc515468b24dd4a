package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/takeonehq/recorder/internal/control"
)

var ctlCmd = &cobra.Command{
	Use:   "ctl <verb> [args]",
	Short: "Send a control verb to a running recorder",
	Long: `Send a control verb to the recorder running on this machine.

Verbs:
  status                 print the session status
  confirm                commit the preview into recording
  pause                  suspend frame and audio submission
  resume                 reverse pause
  stop                   finalize the recording
  switch canvas          revert to the drawing surface
  switch display [n]     capture display n (default 0)`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runCtl(args)
	},
}

func runCtl(args []string) {
	cfg := loadConfig()
	dataDir := cfg.ResolveDataDir()

	key, err := control.ReadKeyFile(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No control key found; is a recorder running? (%v)\n", err)
		os.Exit(1)
	}

	socketPath := cfg.ControlSocket
	if socketPath == "" {
		socketPath = control.DefaultSocketPath(dataDir)
	}
	client, err := control.Dial(socketPath, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot reach recorder at %s: %v\n", socketPath, err)
		os.Exit(1)
	}
	defer client.Close()

	verb := args[0]
	var callArgs any
	if verb == "switch" {
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "switch needs a target: canvas or display [n]")
			os.Exit(1)
		}
		sw := switchArgs{Target: args[1]}
		if sw.Target == "display" && len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Display index %q is not a number\n", args[2])
				os.Exit(1)
			}
			sw.Display = n
		}
		callArgs = sw
	}

	var result json.RawMessage
	if err := client.Call(verb, callArgs, &result); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", verb, err)
		os.Exit(1)
	}
	if len(result) > 0 {
		var pretty map[string]any
		if json.Unmarshal(result, &pretty) == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
			return
		}
		fmt.Println(string(result))
		return
	}
	fmt.Println("ok")
}
