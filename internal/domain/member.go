package domain

// Member is a claimed seat, bound to one connection.
// No transport or lifecycle logic here. EndpointID and HubPortID are opaque
// media handle ids; the live handles belong to the process that created them
// and live in its client registry.
type Member struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Token      string `json:"token"`
	RoomID     string `json:"roomId"`
	EndpointID string `json:"webRtcEndpointId"`
	HubPortID  string `json:"hubPortId"`
}
