package appauth

// GuardRoutes names the route groups and redirect targets the guard works
// with. Groups are matched against the first route segment.
type GuardRoutes struct {
	AuthGroup string
	TabsGroup string
	Home      string
	Login     string
}

// Decision is the outcome of one guard evaluation; derived, never stored.
type Decision struct {
	RedirectTo string
}

// Redirect reports whether the decision carries a redirect.
func (d Decision) Redirect() bool { return d.RedirectTo != "" }

// Guard keeps the visible screen consistent with auth state. It reads the
// Store and the Navigator, and issues at most one replace-redirect per
// evaluation: authenticated users are moved off the auth screens, signed-out
// users off the protected tabs, and every other route (modals, admin) is
// left alone so redirects cannot loop.
type Guard struct {
	store  *Store
	nav    Navigator
	routes *GuardRoutes
	logger Logger
}

// GuardOption customizes guard construction.
type GuardOption func(*Guard)

// WithGuardRoutes overrides the default route groups.
func WithGuardRoutes(routes GuardRoutes) GuardOption {
	return func(g *Guard) {
		g.routes = &routes
	}
}

// WithGuardLogger overrides the guard logger.
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGuard wires a guard to its state container and navigation collaborator.
func NewGuard(store *Store, nav Navigator, opts ...GuardOption) *Guard {
	g := &Guard{
		store: store,
		nav:   nav,
		routes: &GuardRoutes{
			AuthGroup: "(auth)",
			TabsGroup: "(tabs)",
			Home:      "/(tabs)/home",
			Login:     "/(auth)/login",
		},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Evaluate computes the redirect decision for a state and route. Pure: no
// navigation happens here. Evaluation is a no-op until the store has
// initialized and settled, so a failing backend can never wedge navigation.
func (g *Guard) Evaluate(state State, segments []string) Decision {
	if !state.Initialized || state.Loading {
		return Decision{}
	}

	var head string
	if len(segments) > 0 {
		head = segments[0]
	}

	inAuthGroup := head == g.routes.AuthGroup
	inTabsGroup := head == g.routes.TabsGroup

	switch {
	case state.Session != nil && state.User != nil && inAuthGroup:
		return Decision{RedirectTo: g.routes.Home}
	case state.Session == nil && state.User == nil && inTabsGroup:
		return Decision{RedirectTo: g.routes.Login}
	}

	return Decision{}
}

// Apply runs one evaluation against the live navigator and issues the
// redirect, if any, with replace semantics. Returns whether it redirected.
func (g *Guard) Apply(state State) bool {
	if !g.nav.Ready() {
		return false
	}

	decision := g.Evaluate(state, g.nav.Segments())
	if !decision.Redirect() {
		return false
	}

	g.logger.Info("guard redirect", "to", decision.RedirectTo)
	g.nav.Replace(decision.RedirectTo)
	return true
}

// Attach subscribes the guard to store changes, re-evaluating on each one,
// and evaluates once immediately. Returns the disposer.
func (g *Guard) Attach() (stop func()) {
	unsubscribe := g.store.Subscribe(func(state State) {
		g.Apply(state)
	})
	g.Apply(g.store.State())
	return unsubscribe
}
