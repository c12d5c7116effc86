package sdk

import (
	"os"
)

// DefaultAddr is used when PAWGRAM_ADDR is unset.
const DefaultAddr = "http://localhost:5000"

// FromEnv builds a client from the environment:
//
//	PAWGRAM_ADDR          server base URL (default http://localhost:5000)
//	PAWGRAM_TOKEN         session token from an earlier login
//	PAWGRAM_INSECURE_TLS  "true" to accept a self-signed server certificate
func FromEnv(opts ...Option) *Client {
	addr := os.Getenv("PAWGRAM_ADDR")
	if addr == "" {
		addr = DefaultAddr
	}

	var envOpts []Option
	if os.Getenv("PAWGRAM_INSECURE_TLS") == "true" {
		envOpts = append(envOpts, WithInsecureTLS())
	}
	if token := os.Getenv("PAWGRAM_TOKEN"); token != "" {
		envOpts = append(envOpts, WithToken(token))
	}
	return New(addr, append(envOpts, opts...)...)
}
