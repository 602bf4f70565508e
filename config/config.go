// Package config provides configuration loading for forumbot using TOML.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"forumbot/sites"
)

// Embed settings bound the preview text shown in chat.
type Embed struct {
	MaxChars   int `toml:"max_chars"`
	StdLines   int `toml:"std_lines"`
	MaxLines   int `toml:"max_lines"`
	LineLength int `toml:"line_length"`
}

// Fetcher settings control page retrieval.
type Fetcher struct {
	UserAgent      string  `toml:"user_agent"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	ChromePath     string  `toml:"chrome_path"`
	HostRPS        float64 `toml:"host_rps"`
}

// Discord settings. The bot token is deliberately not part of the file;
// it comes from the FORUMBOT_TOKEN environment variable.
type Discord struct {
	CommandPrefix string `toml:"command_prefix"`
	OwnerID       string `toml:"owner_id"`
	AuthLink      string `toml:"auth_link"`
}

// Site is one forum profile as written in the config file.
type Site struct {
	Name           string   `toml:"name"`
	BaseURL        string   `toml:"base_url"`
	AccentColor    int      `toml:"accent_color"`
	PostPatterns   []string `toml:"post_patterns"`
	ThreadPatterns []string `toml:"thread_patterns"`
}

// UI settings for the interactive message tree.
type UI struct {
	IdleHours int `toml:"idle_hours"`
}

// Config is the main configuration struct.
type Config struct {
	Embed   Embed   `toml:"embed"`
	Fetcher Fetcher `toml:"fetcher"`
	Discord Discord `toml:"discord"`
	UI      UI      `toml:"ui"`
	Sites   []Site  `toml:"sites"`
}

// Default returns the default configuration: both supported forums and
// display bounds tuned for mobile-width embeds.
func Default() *Config {
	return &Config{
		Embed: Embed{
			MaxChars:   2048,
			StdLines:   6,
			MaxLines:   30,
			LineLength: 60,
		},
		Fetcher: Fetcher{
			UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			TimeoutSeconds: 30,
			HostRPS:        1,
		},
		Discord: Discord{
			CommandPrefix: "!",
		},
		UI: UI{
			IdleHours: 24,
		},
		Sites: []Site{
			{
				Name:        "era",
				BaseURL:     "https://www.resetera.com/",
				AccentColor: 8343994,
				PostPatterns: []string{
					`https://www\.resetera\.com/threads/.+#post-\d+`,
					`https://www\.resetera\.com/posts/\d+`,
				},
				ThreadPatterns: []string{
					`https://www\.resetera\.com/threads/.+\.\d+`,
					`https://www\.resetera\.com/threads/\d+`,
				},
			},
			{
				Name:    "gaf",
				BaseURL: "https://www.neogaf.com/",
				PostPatterns: []string{
					`https://www\.neogaf\.com/threads/.+#post-\d+`,
				},
				ThreadPatterns: []string{
					`https://www\.neogaf\.com/threads/.+\.\d+`,
				},
			},
		},
	}
}

// configDir returns the configuration directory path.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "forumbot"), nil
}

// ConfigPath returns the path to the user's config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads configuration, layering user config on top of defaults.
// Returns the default config if no user config exists.
func Load() (*Config, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return Default(), nil
	}
	return LoadFrom(configPath)
}

// LoadFrom loads configuration from an explicit path, layering it on
// top of defaults. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	// Decoding into the default-initialized struct leaves unset keys at
	// their default values. A sites table in the file replaces the
	// default site list wholesale.
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Registry converts the configured site list into a validated registry.
func (c *Config) Registry() (*sites.Registry, error) {
	profiles := make([]*sites.Profile, len(c.Sites))
	for i, s := range c.Sites {
		profiles[i] = &sites.Profile{
			Name:           s.Name,
			BaseURL:        s.BaseURL,
			AccentColor:    s.AccentColor,
			PostPatterns:   s.PostPatterns,
			ThreadPatterns: s.ThreadPatterns,
		}
	}
	return sites.NewRegistry(profiles)
}

// DefaultTOML returns the default configuration as a TOML string, for
// generating a starter config file.
func DefaultTOML() string {
	return `# forumbot configuration
# Save to ~/.config/forumbot/config.toml and customize.
# The bot token is read from the FORUMBOT_TOKEN environment variable.

[embed]
max_chars = 2048
std_lines = 6
max_lines = 30
line_length = 60

[fetcher]
timeout_seconds = 30
host_rps = 1.0
# chrome_path = "/usr/bin/chromium"

[discord]
command_prefix = "!"
# owner_id = "your user id"
# auth_link = "https://discord.com/oauth2/authorize?..."

[ui]
idle_hours = 24

[[sites]]
name = "era"
base_url = "https://www.resetera.com/"
accent_color = 8343994
post_patterns = [
  'https://www\.resetera\.com/threads/.+#post-\d+',
  'https://www\.resetera\.com/posts/\d+',
]
thread_patterns = [
  'https://www\.resetera\.com/threads/.+\.\d+',
  'https://www\.resetera\.com/threads/\d+',
]

[[sites]]
name = "gaf"
base_url = "https://www.neogaf.com/"
post_patterns = ['https://www\.neogaf\.com/threads/.+#post-\d+']
thread_patterns = ['https://www\.neogaf\.com/threads/.+\.\d+']
`
}
