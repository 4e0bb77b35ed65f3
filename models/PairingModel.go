package models

import "time"

// Pairing is one side of a (potential) two-party session. Two matched
// pairings reference each other through PeerID.
type Pairing struct {
	PairingID   string    `dynamodbav:"pairingId" json:"pairingId"`
	OwnerID     string    `dynamodbav:"ownerId" json:"ownerId"`
	PeerID      string    `dynamodbav:"peerId,omitempty" json:"peerId,omitempty"`
	Status      string    `dynamodbav:"status" json:"status"`
	Role        string    `dynamodbav:"role,omitempty" json:"role,omitempty"`
	AnnouncedAt time.Time `dynamodbav:"announcedAt" json:"announcedAt"`
	MatchedAt   time.Time `dynamodbav:"matchedAt" json:"matchedAt"`
}

// Matched reports whether the pairing currently has a peer
func (p Pairing) Matched() bool {
	return p.PeerID != ""
}

// PairingsTable is the DynamoDB table name for live pairings
const PairingsTable = "Pairings"
