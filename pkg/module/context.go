package module

import "context"

type moduleContextKey struct{}

func withModule(ctx context.Context, m *Module) context.Context {
	return context.WithValue(ctx, moduleContextKey{}, m)
}

// FromContext returns the module whose OnStarted received ctx.
func FromContext(ctx context.Context) (*Module, bool) {
	m, ok := ctx.Value(moduleContextKey{}).(*Module)
	return m, ok
}

// Ready promotes the running module from Starting to Started.
// It must be called from inside OnStarted with the context the hook
// received. Returns false if ctx carries no module or the module is not
// Starting.
func Ready(ctx context.Context) bool {
	m, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return m.promote("ready")
}
