package handler

import (
	internalWS "ai-meeting-copilot-be/internal/websocket"
)

// ObserverDelivery scopes hub broadcasts to the observation channel.
type ObserverDelivery struct {
	Hub *internalWS.Hub
}

func (d ObserverDelivery) Broadcast(meetingID string, data []byte) {
	d.Hub.Broadcast(meetingID, internalWS.RoleObserver, data)
}

// FacilitatorDelivery scopes hub broadcasts to the facilitation channel.
type FacilitatorDelivery struct {
	Hub *internalWS.Hub
}

func (d FacilitatorDelivery) Broadcast(meetingID string, data []byte) {
	d.Hub.Broadcast(meetingID, internalWS.RoleFacilitator, data)
}
