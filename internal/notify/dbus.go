//go:build linux

package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	dbusNotifyDest      = "org.freedesktop.Notifications"
	dbusNotifyPath      = "/org/freedesktop/Notifications"
	dbusNotifyInterface = "org.freedesktop.Notifications"

	appName     = "SyncRadio"
	appIcon     = "audio-x-generic"
	desktopName = "syncradio"
)

// dbusBackend talks to the session notification server.
type dbusBackend struct {
	obj dbus.BusObject
}

// New connects to the session bus. Without one it returns a backend that
// shows nothing, together with an error wrapping ErrUnavailable.
func New() (Backend, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nopBackend{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &dbusBackend{obj: conn.Object(dbusNotifyDest, dbusNotifyPath)}, nil
}

// Show calls Notify(app_name, replaces_id, app_icon, summary, body, actions,
// hints, expire_timeout).
func (b *dbusBackend) Show(replaces uint32, c Card) (uint32, error) {
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(c.Urgency)),
		"desktop-entry": dbus.MakeVariant(desktopName),
		"category":      dbus.MakeVariant("x-gnome.music"),
	}
	icon := appIcon
	if c.Cover != "" {
		icon = c.Cover
		hints["image-path"] = dbus.MakeVariant(c.Cover)
	}

	call := b.obj.Call(dbusNotifyInterface+".Notify", 0,
		appName, replaces, icon, c.Title, c.body(), []string{}, hints, c.expireMillis())
	if call.Err != nil {
		return 0, call.Err
	}
	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (b *dbusBackend) Dismiss(id uint32) error {
	return b.obj.Call(dbusNotifyInterface+".CloseNotification", 0, id).Err
}
