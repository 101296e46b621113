package api

// Config is the schema of a ttsync.toml file. Every key is optional; unset
// keys keep their defaults and command-line flags override both.
type Config struct {
	// Root is the project root. Tags are relative to it and the global
	// script files are looked up in it.
	Root string `toml:"root"`
	// HostAddr is where the game listens for requests.
	HostAddr string `toml:"host_addr"`
	// ListenAddr is where the game delivers replies and notifications.
	ListenAddr string `toml:"listen_addr"`
	// ForwardAddr receives a copy of every notification the console shows.
	// Empty disables forwarding.
	ForwardAddr string `toml:"forward_addr"`
	// Debounce is the quiet period that closes a batch of file events,
	// as a Go duration string (e.g. "150ms").
	Debounce string `toml:"debounce"`
	// JournalPath is the sqlite database commits are recorded in. "off"
	// disables the journal.
	JournalPath string `toml:"journal_path"`
	// LogLevel is a zerolog level name: trace, debug, info, warn, error.
	LogLevel string `toml:"log_level"`
	// NoColor disables styled output.
	NoColor bool `toml:"no_color"`
}
