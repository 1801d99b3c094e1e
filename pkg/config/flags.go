package config

import "github.com/spf13/pflag"

// Flags are the command line overrides of the config values.
type Flags struct {
	fs *pflag.FlagSet

	conf           string
	address        string
	debug          bool
	monitoringPort int
	lock           string
	room           string
}

func NewFlags(name string) *Flags {
	f := Flags{fs: pflag.NewFlagSet(name, pflag.ContinueOnError)}
	f.fs.StringVar(&f.conf, "conf", "", "Set custom configuration file path")
	f.fs.StringVar(&f.address, "address", "", "HTTP server address (host:port)")
	f.fs.BoolVar(&f.debug, "debug", false, "Enable debug logs")
	f.fs.IntVar(&f.monitoringPort, "monitoring.port", 0, "Monitoring server port")
	f.fs.StringVar(&f.lock, "lock", "", "Single instance lock file path")
	f.fs.StringVar(&f.room, "room", "", "Room identifier")
	return &f
}

func (f *Flags) Parse(args []string) error { return f.fs.Parse(args) }
func (f *Flags) ConfigPath() string        { return f.conf }

// Apply overrides the config with the flags that were set explicitly.
func (f *Flags) Apply(c *Config) {
	if f.fs.Changed("address") {
		c.Server.Address = f.address
	}
	if f.fs.Changed("debug") {
		c.Debug = f.debug
	}
	if f.fs.Changed("monitoring.port") {
		c.Monitoring.Port = f.monitoringPort
	}
	if f.fs.Changed("lock") {
		c.Server.LockFile = f.lock
	}
	if f.fs.Changed("room") {
		c.Relay.Room = f.room
	}
}

// Load parses the args, reads the config and puts the flags on top of it.
func Load(args []string) (conf Config, path string, err error) {
	flags := NewFlags("relay")
	if err = flags.Parse(args); err != nil {
		return
	}
	if path, err = LoadConfig(&conf, flags.ConfigPath()); err != nil {
		return
	}
	flags.Apply(&conf)
	err = conf.Validate()
	return
}
