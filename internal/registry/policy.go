package registry

// Policy decides how the registry treats minting authorization and the
// owner-to-seat back-reference.  The zero value is the permissive legacy
// ledger: anyone may mint, mint ignores the back-reference and transfer
// leaves the sender's back-reference behind.
type Policy struct {
    // MintRequiresAdmin gates Mint on an authorization proof for the admin
    // stored at initialization.  Mint before Initialize then fails with
    // ErrNotInitialized.
    MintRequiresAdmin bool

    // StrictSeatIndex keeps the back-reference exact: Mint refuses a
    // receiver that already holds a seat and records the new one, and
    // Transfer removes the sender's back-reference.
    StrictSeatIndex bool
}

// DefaultPolicy is the policy used by New unless overridden.
func DefaultPolicy() Policy {
    return Policy{MintRequiresAdmin: true, StrictSeatIndex: true}
}

// LegacyPolicy is the permissive zero Policy, kept for ledgers whose
// stored state was written under those rules.
func LegacyPolicy() Policy { return Policy{} }
