package config

// RegistryConfig selects the registry instance and the two configurable
// ownership rules: whether minting needs the admin's authorization, and
// whether the owner-to-seat index is kept exact.
type RegistryConfig struct {
    ID                string // instance name; namespaces storage keys and events
    KeyPrefix         string // Redis key prefix
    MintRequiresAdmin bool
    StrictSeatIndex   bool
}

// LoadRegistryConfig reads REGISTRY_* variables.  Both policy switches
// default to true.
func LoadRegistryConfig() RegistryConfig {
    return RegistryConfig{
        ID:                envStr("REGISTRY_ID", "default"),
        KeyPrefix:         envStr("REGISTRY_KEY_PREFIX", "registry"),
        MintRequiresAdmin: envBool("REGISTRY_MINT_REQUIRES_ADMIN", true),
        StrictSeatIndex:   envBool("REGISTRY_STRICT_SEAT_INDEX", true),
    }
}
