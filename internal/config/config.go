// Package config holds the base runtime configuration consumed from the
// host process: the bus URL and optional credentials.
package config

import (
	"fmt"
	"strings"
)

// BaseConfiguration is the configuration the core requires from its host.
// Process bootstrap and credential sourcing (env vars, Vault, …) live
// outside this package; this type is just the validated result.
type BaseConfiguration struct {
	// BusURL is the address of the NATS server.
	BusURL string
	// UserJWT is the user JWT for connecting to the bus, if JWT auth is used.
	UserJWT string
	// UserSeed is the corresponding NKey seed for JWT auth.
	UserSeed string
	// BusDomain is the optional JetStream domain for the JetStream context
	// used by this runtime.
	BusDomain string
}

// Validate enforces that UserJWT and UserSeed are supplied together or both
// omitted — any other combination is rejected at startup.
func (c BaseConfiguration) Validate() error {
	if strings.TrimSpace(c.BusURL) == "" {
		return fmt.Errorf("config: bus_url is required")
	}

	jwt := strings.TrimSpace(c.UserJWT)
	seed := strings.TrimSpace(c.UserSeed)
	switch {
	case jwt != "" && seed != "":
		return nil
	case jwt == "" && seed == "":
		return nil
	default:
		return fmt.Errorf("config: must provide both user_jwt and user_seed for jwt authentication, or neither")
	}
}
