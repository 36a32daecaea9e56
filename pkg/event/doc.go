// Package event is the bus modules use to talk to each other.
//
// A Bus delivers posted values to every registered Listener whose Match
// accepts them. Listen builds a listener that matches by Go type:
//
//	id := bus.Register(event.Listen(func(ev config.ConfigChanged) {
//	    orc.Reconfigure(ev.Config)
//	}))
//	defer bus.Unregister(id)
//
// Events that expect an answer embed Request and are completed by the
// listener that handles them:
//
//	type LookupUser struct {
//	    event.Request[User]
//	    ID int
//	}
//
//	bus.Post(LookupUser{Request: event.NewRequest(func(u User) { ... }), ID: 1})
//
// Dispatcher is the in-process Bus. It is itself a lifecycle.Lifecycle,
// so it is started and stopped like any other module; events posted
// before it starts are buffered and delivered once its body runs.
package event
