package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	OutputDir string `mapstructure:"output_dir"`
	DataDir   string `mapstructure:"data_dir"`

	Source       string `mapstructure:"source"`
	DisplayIndex int    `mapstructure:"display_index"`
	CameraDevice string `mapstructure:"camera_device"`

	Width      int `mapstructure:"width"`
	Height     int `mapstructure:"height"`
	FPS        int `mapstructure:"fps"`
	BitrateBps int `mapstructure:"bitrate_bps"`

	Padding          int    `mapstructure:"padding"`
	CornerRadius     int    `mapstructure:"corner_radius"`
	Background       string `mapstructure:"background"`
	BackgroundColor  string `mapstructure:"background_color"`
	BackgroundColor2 string `mapstructure:"background_color2"`
	BackgroundImage  string `mapstructure:"background_image"`
	TitleText        string `mapstructure:"title_text"`
	TitleCorner      string `mapstructure:"title_corner"`
	CursorHighlight  bool   `mapstructure:"cursor_highlight"`
	CursorColor      string `mapstructure:"cursor_color"`
	BubbleSize       int    `mapstructure:"bubble_size"`
	BubbleMirror     bool   `mapstructure:"bubble_mirror"`

	MicEnabled   bool    `mapstructure:"mic_enabled"`
	MicDevice    string  `mapstructure:"mic_device"`
	MicGainDB    float64 `mapstructure:"mic_gain_db"`
	SystemAudio  bool    `mapstructure:"system_audio"`
	SystemDevice string  `mapstructure:"system_device"`
	SystemGainDB float64 `mapstructure:"system_gain_db"`

	PreviewEnabled    bool   `mapstructure:"preview_enabled"`
	PreviewAddr       string `mapstructure:"preview_addr"`
	PreviewMaxClients int    `mapstructure:"preview_max_clients"`

	ControlSocket string `mapstructure:"control_socket"`

	JournalMaxSizeMB  int `mapstructure:"journal_max_size_mb"`
	JournalMaxBackups int `mapstructure:"journal_max_backups"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

func Default() *Config {
	return &Config{
		Source:            "display",
		Width:             1920,
		Height:            1080,
		FPS:               30,
		Padding:           48,
		CornerRadius:      16,
		Background:        "gradient",
		BackgroundColor:   "#0f172a",
		BackgroundColor2:  "#1e3a5f",
		TitleCorner:       "bottom-left",
		CursorHighlight:   true,
		CursorColor:       "#facc15",
		BubbleSize:        160,
		BubbleMirror:      true,
		MicEnabled:        true,
		PreviewAddr:       "127.0.0.1:7763",
		PreviewMaxClients: 4,
		JournalMaxSizeMB:  20,
		JournalMaxBackups: 2,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("takeone")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(Dir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("TAKEONE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("output_dir", cfg.OutputDir)
	viper.Set("data_dir", cfg.DataDir)
	viper.Set("source", cfg.Source)
	viper.Set("display_index", cfg.DisplayIndex)
	viper.Set("camera_device", cfg.CameraDevice)
	viper.Set("width", cfg.Width)
	viper.Set("height", cfg.Height)
	viper.Set("fps", cfg.FPS)
	viper.Set("bitrate_bps", cfg.BitrateBps)
	viper.Set("padding", cfg.Padding)
	viper.Set("corner_radius", cfg.CornerRadius)
	viper.Set("background", cfg.Background)
	viper.Set("background_color", cfg.BackgroundColor)
	viper.Set("background_color2", cfg.BackgroundColor2)
	viper.Set("background_image", cfg.BackgroundImage)
	viper.Set("title_text", cfg.TitleText)
	viper.Set("title_corner", cfg.TitleCorner)
	viper.Set("cursor_highlight", cfg.CursorHighlight)
	viper.Set("cursor_color", cfg.CursorColor)
	viper.Set("bubble_size", cfg.BubbleSize)
	viper.Set("bubble_mirror", cfg.BubbleMirror)
	viper.Set("mic_enabled", cfg.MicEnabled)
	viper.Set("mic_device", cfg.MicDevice)
	viper.Set("mic_gain_db", cfg.MicGainDB)
	viper.Set("system_audio", cfg.SystemAudio)
	viper.Set("system_device", cfg.SystemDevice)
	viper.Set("system_gain_db", cfg.SystemGainDB)
	viper.Set("preview_enabled", cfg.PreviewEnabled)
	viper.Set("preview_addr", cfg.PreviewAddr)
	viper.Set("preview_max_clients", cfg.PreviewMaxClients)
	viper.Set("control_socket", cfg.ControlSocket)
	viper.Set("journal_max_size_mb", cfg.JournalMaxSizeMB)
	viper.Set("journal_max_backups", cfg.JournalMaxBackups)
	viper.Set("log_level", cfg.LogLevel)
	viper.Set("log_format", cfg.LogFormat)
	viper.Set("log_file", cfg.LogFile)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(Dir(), "takeone.yaml")
		if err := os.MkdirAll(Dir(), 0700); err != nil {
			return err
		}
	}

	return viper.WriteConfigAs(cfgPath)
}

// Dir returns the per-user configuration directory. Profiles live in
// a "profiles" subdirectory; runtime state defaults here when data_dir
// is unset.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, "takeone")
}

// ResolveDataDir returns the directory for runtime state such as the
// session journal. Falls back to the config directory.
func (c *Config) ResolveDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return Dir()
}

// ResolveOutputDir returns the directory recordings are written to.
// Defaults to a Videos folder under the user's home, then the cwd.
func (c *Config) ResolveOutputDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Videos")
}
