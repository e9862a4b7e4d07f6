package core

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationUnmarshal(t *testing.T) {
	var object struct {
		Operations []Operation `json:"operations"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"operations":["create","read","update","delete","list"]}`), &object))
	assert.Equal(t, []Operation{OperationCreate, OperationRead, OperationUpdate, OperationDelete, OperationList}, object.Operations)

	assert.Error(t, json.Unmarshal([]byte(`{"operations":["clear"]}`), &object))
}
