package rbac

import (
	"context"
	"log/slog"

	"github.com/rising-bsm/rising/internal/auth"
)

// Mode selects how multiple required permissions combine.
type Mode int

const (
	// ModeAll requires every permission to be present (default).
	ModeAll Mode = iota
	// ModeAny requires at least one permission to be present.
	ModeAny
)

// DecisionObserver receives gate outcomes, for metrics. Decisions are
// "allowed", "denied", "bypass" and "error".
type DecisionObserver func(decision string)

// Gate composes resolver and cache into a single authorization decision.
//
// The admin bypass is an explicit, named configuration switch: when enabled,
// an admin principal is authorized without consulting the resolver at all.
// It is logged at construction so the shortcut is visible in every
// deployment's boot log.
type Gate struct {
	resolver    *Resolver
	cache       *PermissionCache
	adminBypass bool
	logger      *slog.Logger
	observe     DecisionObserver
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithDecisionObserver installs a decision callback.
func WithDecisionObserver(fn DecisionObserver) GateOption {
	return func(g *Gate) {
		g.observe = fn
	}
}

// NewGate constructs a Gate.
func NewGate(resolver *Resolver, cache *PermissionCache, adminBypass bool, logger *slog.Logger, opts ...GateOption) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{
		resolver:    resolver,
		cache:       cache,
		adminBypass: adminBypass,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	logger.Info("authorization gate initialised", slog.Bool("admin_bypass", adminBypass))
	return g
}

// Authorize decides whether the principal may perform an action requiring
// the given permissions. It returns nil when allowed, ErrForbidden when the
// effective set is insufficient, and an ErrResolution-wrapped error when the
// override store is unreachable; the last must surface as a 5xx, never as an
// implicit allow.
func (g *Gate) Authorize(ctx context.Context, principal auth.Principal, permissions []string, mode Mode) error {
	required := normalizePermissions(permissions)
	if len(required) == 0 {
		g.record("allowed")
		return nil
	}
	if g.adminBypass && principal.Role == RoleAdmin {
		g.record("bypass")
		return nil
	}
	set, err := g.effective(ctx, principal)
	if err != nil {
		g.record("error")
		return err
	}
	allowed := false
	switch mode {
	case ModeAny:
		allowed = set.HasAny(required)
	default:
		allowed = set.HasAll(required)
	}
	if !allowed {
		g.record("denied")
		return ErrForbidden
	}
	g.record("allowed")
	return nil
}

// EffectivePermissions returns the principal's resolved permission set,
// through the cache. The admin bypass does not shortcut this call: the
// listing endpoints report the real set.
func (g *Gate) EffectivePermissions(ctx context.Context, principal auth.Principal) (PermissionSet, error) {
	return g.effective(ctx, principal)
}

// InvalidateUser drops the cached permission set for a user.
func (g *Gate) InvalidateUser(userID int64) {
	g.cache.Invalidate(userID)
}

func (g *Gate) effective(ctx context.Context, principal auth.Principal) (PermissionSet, error) {
	return g.cache.GetOrResolve(ctx, principal.UserID, func(ctx context.Context) (PermissionSet, error) {
		return g.resolver.Resolve(ctx, principal.UserID, principal.Role)
	})
}

func (g *Gate) record(decision string) {
	if g.observe != nil {
		g.observe(decision)
	}
}
