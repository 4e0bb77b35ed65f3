package models

// GroupKey partitions the waiting pool: only clients with the same session
// number and pair slot are ever matched together.
type GroupKey struct {
	SessionNr int `json:"sessionNr"`
	Pair      int `json:"pair"`
}

// Client is a provisioned participant slot bound to a single credential key
type Client struct {
	ClientID        string `dynamodbav:"clientId" json:"clientId"`
	Key             string `dynamodbav:"key" json:"key"`
	Name            string `dynamodbav:"name" json:"name"`
	SessionNr       int    `dynamodbav:"sessionNr" json:"sessionNr"`
	Pair            int    `dynamodbav:"pair" json:"pair"`
	Condition       int    `dynamodbav:"condition" json:"condition"`
	PlayerCondition int    `dynamodbav:"playerCondition" json:"playerCondition"`
	InUse           bool   `dynamodbav:"inUse" json:"inUse"`
}

// Group returns the compatibility group of the client
func (c Client) Group() GroupKey {
	return GroupKey{SessionNr: c.SessionNr, Pair: c.Pair}
}

// ClientsTable is the DynamoDB table name for provisioned clients
const ClientsTable = "Clients"

// ClientsKeyIndex is the GSI used to look clients up by credential key
const ClientsKeyIndex = "key-index"
