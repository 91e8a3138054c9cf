package mpris

import (
	"fmt"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsService = "org.freedesktop.Notifications"
	notificationsPath    = dbus.ObjectPath("/org/freedesktop/Notifications")
)

// Urgency is the freedesktop notification urgency hint
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyCritical:
		return "critical"
	default:
		return "normal"
	}
}

// ParseUrgency accepts low, normal or critical
func ParseUrgency(s string) (Urgency, error) {
	switch strings.ToLower(s) {
	case "low":
		return UrgencyLow, nil
	case "", "normal":
		return UrgencyNormal, nil
	case "critical":
		return UrgencyCritical, nil
	default:
		return UrgencyNormal, fmt.Errorf("mpris: unknown urgency %q", s)
	}
}

// Notifier shows desktop notifications
type Notifier struct {
	obj     dbus.BusObject
	appName string
}

// Notifier returns a notifier sharing the bus connection
func (b *Bus) Notifier(appName string) *Notifier {
	return &Notifier{
		obj:     b.conn.Object(notificationsService, notificationsPath),
		appName: appName,
	}
}

// Notify shows a popup and returns the daemon's notification id.
// A zero timeout lets the daemon pick the expiry.
func (n *Notifier) Notify(title, body string, urgency Urgency, timeout time.Duration) (uint32, error) {
	expire := int32(-1)
	if timeout > 0 {
		expire = int32(timeout / time.Millisecond)
	}
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(urgency)),
	}

	var id uint32
	call := n.obj.Call(notificationsService+".Notify", 0,
		n.appName,  // app_name
		uint32(0),  // replaces_id
		"",         // app_icon
		title,      // summary
		body,       // body
		[]string{}, // actions
		hints,
		expire,
	)
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("mpris: notify: %w", err)
	}
	return id, nil
}
