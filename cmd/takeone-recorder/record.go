package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/takeonehq/recorder/internal/config"
	"github.com/takeonehq/recorder/internal/control"
	"github.com/takeonehq/recorder/internal/journal"
	"github.com/takeonehq/recorder/internal/logging"
	"github.com/takeonehq/recorder/internal/preflight"
	"github.com/takeonehq/recorder/internal/preview"
	"github.com/takeonehq/recorder/internal/record"
	"github.com/takeonehq/recorder/internal/source"
)

var (
	recProfile     string
	recSource      string
	recDisplay     int
	recOutput      string
	recTitle       string
	recWidth       int
	recHeight      int
	recFPS         int
	recMic         bool
	recSystemAudio bool
	recCamera      string
	recPreview     bool
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a session in the foreground (Ctrl+C or 'ctl stop' to finish)",
	Run: func(cmd *cobra.Command, args []string) {
		runRecord(cmd)
	},
}

func init() {
	f := recordCmd.Flags()
	f.StringVar(&recProfile, "profile", "", "recording profile to apply")
	f.StringVar(&recSource, "source", "", "initial source: display or canvas")
	f.IntVar(&recDisplay, "display", 0, "display index to capture")
	f.StringVar(&recOutput, "output", "", "output directory")
	f.StringVar(&recTitle, "title", "", "title overlay text")
	f.IntVar(&recWidth, "width", 0, "output width in pixels")
	f.IntVar(&recHeight, "height", 0, "output height in pixels")
	f.IntVar(&recFPS, "fps", 0, "target frame rate")
	f.BoolVar(&recMic, "mic", true, "capture the microphone")
	f.BoolVar(&recSystemAudio, "system-audio", false, "capture system audio")
	f.StringVar(&recCamera, "camera", "", "camera bubble source (device spec or image file)")
	f.BoolVar(&recPreview, "preview", false, "serve the localhost preview stream")
}

func runRecord(cmd *cobra.Command) {
	cfg := loadConfig()

	if recProfile != "" {
		p, err := config.FindProfile(recProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Profile %q: %v\n", recProfile, err)
			os.Exit(1)
		}
		p.Apply(cfg)
	}
	applyRecordFlags(cmd, cfg)

	if v := cfg.Validate(); v.HasFatals() {
		for _, err := range v.Fatals {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		}
		os.Exit(1)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, logOutput(cfg))
	log := logging.L("cmd")

	report := preflight.Run(cfg)
	for _, c := range report.Checks {
		if c.Status != preflight.OK && c.Message != "" {
			fmt.Fprintf(os.Stderr, "Preflight [%s] %s: %s\n", c.Status, c.Name, c.Message)
		}
	}
	if c, blocked := report.BlockingFailure(); blocked {
		fmt.Fprintf(os.Stderr, "Cannot record: %s\n", c.Message)
		os.Exit(1)
	}

	dataDir := cfg.ResolveDataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create data dir: %v\n", err)
		os.Exit(1)
	}

	jnl, err := journal.New(dataDir, cfg.JournalMaxSizeMB, cfg.JournalMaxBackups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Journal unavailable: %v\n", err)
	}
	defer jnl.Close()

	var camera source.CameraSource
	if cfg.CameraDevice != "" {
		camera, err = source.NewCamera(cfg.CameraDevice)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Camera unavailable, recording without the bubble: %v\n", err)
		}
	}

	sess, err := record.NewSession(record.SessionConfig{
		Config:  cfg,
		Camera:  camera,
		Journal: jnl,
		Advise: func(text string) {
			fmt.Fprintf(os.Stderr, "Note: %s\n", text)
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create session: %v\n", err)
		os.Exit(1)
	}

	// Stop arrives from SIGINT or the control socket's stop verb; either
	// way the session is finalized exactly once from this goroutine.
	stopCh := make(chan struct{})
	var stopOnce sync.Once
	requestStop := func() { stopOnce.Do(func() { close(stopCh) }) }

	ctlSrv, err := startControl(cfg, dataDir, sess, requestStop)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Control socket unavailable: %v\n", err)
	} else {
		defer ctlSrv.Close()
	}

	if cfg.PreviewEnabled {
		pv := preview.NewServer(preview.Options{
			Addr:       cfg.PreviewAddr,
			MaxClients: cfg.PreviewMaxClients,
		}, sess.Snapshot)
		go func() {
			if err := pv.Serve(); err != nil {
				log.Warn("preview server", logging.KeyError, err)
			}
		}()
		defer pv.Close()
		fmt.Printf("Preview: http://%s/\n", cfg.PreviewAddr)
	}

	if err := sess.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start session: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Session %s started (%s)\n", sess.ID, cfg.Source)
	if sess.State() == record.StatePreviewing {
		fmt.Println("Previewing. Run 'takeone-recorder ctl confirm' to begin recording.")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		fmt.Println("\nStopping...")
	case <-stopCh:
		fmt.Println("Stop requested, finalizing...")
	}

	res, err := sess.Stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recording failed: %v\n", err)
		os.Exit(1)
	}

	path, err := writeOutput(cfg, sess.ID, res)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		os.Exit(1)
	}
	jnl.Event(journal.EventOutputWritten, map[string]any{
		"session": sess.ID, "path": path, "bytes": len(res.Output.Data),
	})

	for _, a := range res.Advisories {
		fmt.Fprintf(os.Stderr, "Note: %s\n", a)
	}
	fmt.Printf("Saved %s (%s, %d frames, %s)\n",
		path, res.Output.Format, res.Output.VideoFrames, res.Output.Duration.Round(time.Millisecond))
}

// applyRecordFlags lays explicitly set flags over the config so the
// precedence stays flags > profile > file > defaults.
func applyRecordFlags(cmd *cobra.Command, cfg *config.Config) {
	set := cmd.Flags().Changed
	if set("source") {
		cfg.Source = recSource
	}
	if set("display") {
		cfg.DisplayIndex = recDisplay
	}
	if set("output") {
		cfg.OutputDir = recOutput
	}
	if set("title") {
		cfg.TitleText = recTitle
	}
	if set("width") {
		cfg.Width = recWidth
	}
	if set("height") {
		cfg.Height = recHeight
	}
	if set("fps") {
		cfg.FPS = recFPS
	}
	if set("mic") {
		cfg.MicEnabled = recMic
	}
	if set("system-audio") {
		cfg.SystemAudio = recSystemAudio
	}
	if set("camera") {
		cfg.CameraDevice = recCamera
	}
	if set("preview") {
		cfg.PreviewEnabled = recPreview
	}
}

func logOutput(cfg *config.Config) io.Writer {
	if cfg.LogFile == "" {
		return os.Stderr
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open log file %s: %v\n", cfg.LogFile, err)
		return os.Stderr
	}
	return f
}

type switchArgs struct {
	Target  string `json:"target"`
	Display int    `json:"display"`
}

// startControl generates the per-run key, publishes it next to the
// journal and serves the verb endpoint.
func startControl(cfg *config.Config, dataDir string, sess *record.Session, requestStop func()) (*control.Server, error) {
	key, err := control.GenerateKey()
	if err != nil {
		return nil, err
	}
	if _, err := control.WriteKeyFile(dataDir, key); err != nil {
		return nil, err
	}

	srv := control.NewServer(key, func(verb string, args json.RawMessage) (any, error) {
		switch verb {
		case "status":
			return sess.Status(), nil
		case "confirm":
			return nil, sess.Confirm()
		case "pause":
			return nil, sess.Pause()
		case "resume":
			return nil, sess.Resume()
		case "switch":
			var sw switchArgs
			if len(args) > 0 {
				if err := json.Unmarshal(args, &sw); err != nil {
					return nil, fmt.Errorf("malformed switch args: %w", err)
				}
			}
			if sw.Target == "canvas" {
				return nil, sess.SwitchToCanvas()
			}
			return nil, sess.SwitchToDisplay(sw.Display)
		case "stop":
			requestStop()
			return map[string]bool{"stopping": true}, nil
		default:
			return nil, fmt.Errorf("unknown verb %q", verb)
		}
	})

	socketPath := cfg.ControlSocket
	if socketPath == "" {
		socketPath = control.DefaultSocketPath(dataDir)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(socketPath) }()
	select {
	case err := <-errCh:
		return nil, err
	case <-time.After(100 * time.Millisecond):
	}
	return srv, nil
}

// writeOutput lands the finished recording in the output directory with
// the extension matching the chosen container.
func writeOutput(cfg *config.Config, sessionID string, res *record.Result) (string, error) {
	dir := cfg.ResolveOutputDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("takeone-%s-%s.%s",
		time.Now().Format("20060102-150405"), sessionID, res.Output.Format)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, res.Output.Data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
