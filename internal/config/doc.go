/*
Package config provides the coordinator's nested YAML configuration.

A Configuration is built with NewDefault, optionally overridden from a file
with LoadFromFile, then overlaid with environment variables via LoadFromEnv
(the precedence used by cmd/coordinatord):

	cfg := config.NewDefault()
	if path := os.Getenv("COORDINATOR_CONFIG"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			log.Fatal(err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

Configuration nests seven sections: Nodes (node name to local directory),
Crypto (key/salt file paths and PBKDF2 iteration count), Catalog (SQLite
path and busy-retry parameters), Chunk (chunk size and per-node capacity),
Server (HTTP listen address, admin key, CORS), Lifecycle (background loop
periods and retention defaults), and Monitoring (metrics listen address and
log level).
*/
package config
