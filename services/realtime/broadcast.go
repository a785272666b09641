package realtime

// HubBroadcaster adapts the Hub to the gamification Broadcaster interface so
// the award engine can push unlock events without importing this package.
type HubBroadcaster struct {
	hub *Hub
}

// NewHubBroadcaster wraps a hub for the gamification engine.
func NewHubBroadcaster(hub *Hub) *HubBroadcaster {
	return &HubBroadcaster{hub: hub}
}

func (b *HubBroadcaster) ToUser(userID uint, event string, data interface{}) {
	b.hub.Broadcast(UserRoom(userID), event, data, nil)
}

func (b *HubBroadcaster) ToSchool(schoolID uint, event string, data interface{}) {
	b.hub.Broadcast(SchoolRoom(schoolID), event, data, nil)
}
