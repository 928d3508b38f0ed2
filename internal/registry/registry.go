// Package registry implements the seat registry: numbered seats minted to
// owner identities, transferable only by their current owner, with at most
// one seat per receiving identity.
//
// A Registry is an explicit state object over a store.Store.  Calls against
// one Registry run one at a time, every precondition is checked before any
// write, and the writes of a successful call commit as one unit.
package registry

import (
    "context"
    "fmt"
    "sync"
    "time"

    "go.uber.org/zap"

    "github.com/iliyamo/seat-registry/internal/model"
    "github.com/iliyamo/seat-registry/internal/store"
)

// Authorizer asserts that the current call may act as an identity.  It
// returns a non-nil error when no valid proof is present.
type Authorizer interface {
    RequireAuth(ctx context.Context, id model.Identity) error
}

// Registry owns all seat state of one registry instance.
type Registry struct {
    mu     sync.Mutex
    store  store.Store
    auth   Authorizer
    policy Policy
    events EventSink
    log    *zap.Logger
    name   string
    now    func() time.Time
}

// Option customizes a Registry.
type Option func(*Registry)

// WithPolicy overrides DefaultPolicy.
func WithPolicy(p Policy) Option { return func(r *Registry) { r.policy = p } }

// WithEventSink publishes committed changes to sink.
func WithEventSink(sink EventSink) Option { return func(r *Registry) { r.events = sink } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option { return func(r *Registry) { r.log = l } }

// WithInstance names the registry instance in events and logs.
func WithInstance(name string) Option { return func(r *Registry) { r.name = name } }

// New builds a Registry over s.  auth must be non-nil.
func New(s store.Store, auth Authorizer, opts ...Option) *Registry {
    if s == nil || auth == nil {
        panic("nil store or authorizer passed to registry.New")
    }
    r := &Registry{
        store:  s,
        auth:   auth,
        policy: DefaultPolicy(),
        log:    zap.NewNop(),
        name:   "default",
        now:    func() time.Time { return time.Now().UTC() },
    }
    for _, opt := range opts {
        opt(r)
    }
    r.log = r.log.With(zap.String("registry", r.name))
    return r
}

// Policy returns the policy the registry was built with.
func (r *Registry) Policy() Policy { return r.policy }

// Initialize stores the registry metadata.  It succeeds exactly once; later
// calls fail with ErrAlreadyInitialized and leave the metadata untouched.
// No caller authorization is required.
func (r *Registry) Initialize(ctx context.Context, name, symbol string, admin model.Identity) error {
    if err := model.ValidateName(name); err != nil {
        return err
    }
    if err := model.ValidateSymbol(symbol); err != nil {
        return err
    }
    if err := admin.Validate(); err != nil {
        return err
    }
    md := model.Metadata{Name: name, Symbol: symbol, Admin: admin}
    err := r.update(ctx, func(tx store.Txn) error {
        _, ok, err := tx.Get(store.AdminKey())
        if err != nil {
            return err
        }
        if ok {
            return ErrAlreadyInitialized
        }
        tx.Set(store.NameKey(), md.Name)
        tx.Set(store.SymbolKey(), md.Symbol)
        tx.Set(store.AdminKey(), string(md.Admin))
        return nil
    })
    if err != nil {
        return err
    }
    r.log.Info("registry initialized", zap.String("symbol", symbol), zap.String("admin", admin.String()))
    r.emit(ctx, Event{Type: EventInitialized, Metadata: &md})
    return nil
}

// Metadata returns the values stored by Initialize.
func (r *Registry) Metadata(ctx context.Context) (model.Metadata, error) {
    r.mu.Lock()
    defer r.mu.Unlock()

    var md model.Metadata
    admin, ok, err := r.store.Get(ctx, store.AdminKey())
    if err != nil {
        return md, err
    }
    if !ok {
        return md, ErrNotInitialized
    }
    md.Admin = model.Identity(admin)
    if md.Name, _, err = r.store.Get(ctx, store.NameKey()); err != nil {
        return md, err
    }
    if md.Symbol, _, err = r.store.Get(ctx, store.SymbolKey()); err != nil {
        return md, err
    }
    return md, nil
}

// Mint creates the ownership record of seat for to.  Under
// Policy.MintRequiresAdmin the call must carry a proof for the admin; under
// Policy.StrictSeatIndex to must not already hold a seat.
func (r *Registry) Mint(ctx context.Context, to model.Identity, seat model.SeatNumber) error {
    err := r.update(ctx, func(tx store.Txn) error {
        if r.policy.MintRequiresAdmin {
            admin, ok, err := tx.Get(store.AdminKey())
            if err != nil {
                return err
            }
            if !ok {
                return ErrNotInitialized
            }
            if err := r.auth.RequireAuth(ctx, model.Identity(admin)); err != nil {
                return fmt.Errorf("%w: %v", ErrUnauthorized, err)
            }
        }
        // Authorization is checked before input validation.
        if err := to.Validate(); err != nil {
            return err
        }
        _, owned, err := tx.Get(store.TokenOwnerKey(seat))
        if err != nil {
            return err
        }
        if owned {
            return ErrSeatAlreadyOwned
        }
        if r.policy.StrictSeatIndex {
            _, has, err := tx.Get(store.SeatKey(to))
            if err != nil {
                return err
            }
            if has {
                return ErrReceiverAlreadyHasSeat
            }
            tx.Set(store.SeatKey(to), seat.String())
        }
        tx.Set(store.TokenOwnerKey(seat), string(to))
        return nil
    })
    if err != nil {
        return err
    }
    r.log.Info("seat minted", zap.Uint32("seat", uint32(seat)), zap.String("to", to.String()))
    r.emit(ctx, Event{Type: EventSeatMinted, Seat: seat, To: to})
    return nil
}

// OwnerOf returns the current owner of seat, or ErrSeatNotFound.
func (r *Registry) OwnerOf(ctx context.Context, seat model.SeatNumber) (model.Identity, error) {
    r.mu.Lock()
    defer r.mu.Unlock()

    v, ok, err := r.store.Get(ctx, store.TokenOwnerKey(seat))
    if err != nil {
        return "", err
    }
    if !ok {
        return "", ErrSeatNotFound
    }
    return model.Identity(v), nil
}

// Transfer moves seat from its current owner to to.  Checks run in a fixed
// order and the first failure is returned: authorization for from,
// existence of the seat, from being the owner, and to not holding a seat.
func (r *Registry) Transfer(ctx context.Context, from, to model.Identity, seat model.SeatNumber) error {
    if err := r.auth.RequireAuth(ctx, from); err != nil {
        return fmt.Errorf("%w: %v", ErrUnauthorized, err)
    }
    if err := to.Validate(); err != nil {
        return err
    }
    err := r.update(ctx, func(tx store.Txn) error {
        owner, ok, err := tx.Get(store.TokenOwnerKey(seat))
        if err != nil {
            return err
        }
        if !ok {
            return ErrTokenNotFound
        }
        if model.Identity(owner) != from {
            return ErrNotOwner
        }
        _, has, err := tx.Get(store.SeatKey(to))
        if err != nil {
            return err
        }
        if has {
            return ErrReceiverAlreadyHasSeat
        }
        if r.policy.StrictSeatIndex && from != to {
            held, ok, err := tx.Get(store.SeatKey(from))
            if err != nil {
                return err
            }
            if ok && held == seat.String() {
                tx.Delete(store.SeatKey(from))
            }
        }
        tx.Set(store.TokenOwnerKey(seat), string(to))
        tx.Set(store.SeatKey(to), seat.String())
        return nil
    })
    if err != nil {
        return err
    }
    r.log.Info("seat transferred",
        zap.Uint32("seat", uint32(seat)),
        zap.String("from", from.String()),
        zap.String("to", to.String()))
    r.emit(ctx, Event{Type: EventSeatTransferred, Seat: seat, From: from, To: to})
    return nil
}

// update serializes fn against every other call on this registry.
func (r *Registry) update(ctx context.Context, fn func(store.Txn) error) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.store.Update(ctx, fn)
}

func (r *Registry) emit(ctx context.Context, ev Event) {
    if r.events == nil {
        return
    }
    ev.Registry = r.name
    ev.OccurredAt = r.now()
    if err := r.events.Publish(ctx, ev); err != nil {
        r.log.Warn("publish event failed", zap.String("type", string(ev.Type)), zap.Error(err))
    }
}
