package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
)

func TestExtractHelpers(t *testing.T) {
	item := map[string]types.AttributeValue{
		"clientId":  &types.AttributeValueMemberS{Value: "c1"},
		"sessionNr": &types.AttributeValueMemberN{Value: "12"},
		"ratio":     &types.AttributeValueMemberN{Value: "1.5"},
		"inUse":     &types.AttributeValueMemberBOOL{Value: true},
	}

	assert.Equal(t, "c1", ExtractString(item, "clientId"))
	assert.Equal(t, "", ExtractString(item, "sessionNr"))
	assert.Equal(t, "", ExtractString(item, "missing"))

	assert.Equal(t, 12, ExtractInt(item, "sessionNr"))
	assert.Equal(t, 0, ExtractInt(item, "ratio"))
	assert.Equal(t, 0, ExtractInt(item, "inUse"))
	assert.Equal(t, 0, ExtractInt(item, "missing"))
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusConflict, "Key already in use")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"Key already in use"}`, rec.Body.String())
}
