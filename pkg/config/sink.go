package config

// SinkConfig selects which Sink drives the engine's output and holds
// that driver's connection details. Exactly one is active per engine.
// Example YAML:
// sink:
//
//	kind: file
//	path: "/var/log/logmux/out.log"
//
// or:
// sink:
//
//	kind: quic
//	listen: ["0.0.0.0:4433"]
//	dial:
//	  - address: "collector.internal:4433"
type SinkConfig struct {
	Kind   string           `mapstructure:"kind"`
	Path   string           `mapstructure:"path"`
	Listen []string         `mapstructure:"listen"`
	Dial   []PeerDialConfig `mapstructure:"dial"`
	// Extra holds driver-specific options (e.g. MQTT topic, rate limits).
	Extra map[string]any `mapstructure:"extra"`
}

// PeerDialConfig describes a remote endpoint to dial on startup.
type PeerDialConfig struct {
	Address string `mapstructure:"address"`
}
