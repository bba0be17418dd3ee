// Package config loads pairchat configuration.
//
// # File Location
//
// The CLI reads the file named by PAIRCHAT_CONFIG, falling back to
// $XDG_CONFIG_HOME/pairchat/pairchat.yaml (or ~/.config/pairchat/pairchat.yaml).
// A .env file in the working directory is loaded first so secrets can stay
// out of the config file.
//
// # Format
//
// YAML by default; a .toml extension selects TOML. ${VAR} references are
// expanded from the environment before parsing.
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	database:
//	  driver: sqlite            # or postgres
//	  path: "./pairchat.db"
//	  dsn: "${DATABASE_URL}"    # postgres only
//	auth:
//	  jwt_secret: "${PAIRCHAT_JWT_SECRET}"
//	realtime:
//	  send_buffer: 128
//	  write_wait: "10s"
//	  ping_period: "30s"
//	  read_timeout: "60s"
//	  request_timeout: "5s"
//	  max_frame_bytes: 65536
//	  allowed_origins: ["https://chat.example.com"]
//	redis:
//	  enabled: false
//	  url: "redis://localhost:6379/0"
//	  channel_prefix: "pairchat:conv:"
//	  dedupe_ttl: "5m"
//	logging:
//	  level: info               # debug | info | warn | error
//	  format: text              # text | json
//
// Omitted fields take the values from Default.
package config
