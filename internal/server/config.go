package server

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string `yaml:"listen_addr"`

	// AllowedOrigins feeds the CORS and websocket origin checks. Empty or
	// "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func DefaultConfig() Config {
	return Config{
		ListenAddr: ":8080",
	}
}
