// Package config loads nodesync.yaml.
//
// Example:
//
//	server:
//	  address: ":8080"
//	  idle_timeout: 10m
//	log:
//	  level: debug
//	  format: json
//	filter: 'key in ["name", "email"]'
//	snapshot:
//	  backend: redis
//	  redis:
//	    addr: localhost:6379
//	    ttl: 24h
//
// Missing keys take defaults; the loaded file is validated before use.
package config
