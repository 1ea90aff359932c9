package store

import "log/slog"

// notify signals that the instance changed.
//
// While silent it does nothing. Otherwise it publishes a new View with a
// fresh token, runs every plugin's OnChange with a snapshot, then marks the
// instance as changed.
func (i *Instance) notify() {
	if i.silent {
		return
	}

	i.token = i.session.clock.Next()
	i.session.publish(i.view())

	slog.Debug("store changed",
		"store_key", i.def.Key,
		"session_id", i.session.id,
		"token", i.token,
	)

	i.plugins.OnChange(i.def.Key, i.current)
	i.everChanged = true
}

func (i *Instance) view() View {
	return View{Key: i.def.Key, Token: i.token, inst: i}
}
