package models

import "time"

// StatusAccepted is the only relationship status that permits signaling.
const StatusAccepted = "accepted"

// MatchConnection is a row of the match-connections collection, paired as
// requester/accepter.
type MatchConnection struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requesterId"`
	AccepterID  string    `json:"accepterId"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ConnectionRequest is a row of the connection-requests collection, paired as
// sender/receiver.
type ConnectionRequest struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Room is the normalized view of either relationship: two participants and a
// status. It is derived per lookup and never stored by the signaling layer.
type Room struct {
	ID           string    `json:"roomId"`
	Participants [2]string `json:"participants"`
	Status       string    `json:"status"`
}

// Accepted reports whether both sides have accepted the relationship.
func (r Room) Accepted() bool {
	return r.Status == StatusAccepted
}

// Has reports whether userID is one of the participants.
func (r Room) Has(userID string) bool {
	return userID != "" && (r.Participants[0] == userID || r.Participants[1] == userID)
}

// Other returns the participant that is not userID, or "" if userID is not
// in the room.
func (r Room) Other(userID string) string {
	switch userID {
	case "":
		return ""
	case r.Participants[0]:
		return r.Participants[1]
	case r.Participants[1]:
		return r.Participants[0]
	}
	return ""
}

// RoomInfo is returned by the call-info endpoint.
type RoomInfo struct {
	RoomID     string   `json:"roomId"`
	PeerUserID string   `json:"peerUserId"`
	Role       string   `json:"role"`
	Status     string   `json:"status"`
	ICEServers []string `json:"iceServers"`
}

// BroadcastRequest is the body of POST /api/broadcast
type BroadcastRequest struct {
	Event string         `json:"event" binding:"required"`
	Data  map[string]any `json:"data"`
}
