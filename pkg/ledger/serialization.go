package ledger

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/eigenx-permit-go/pkg/types"
)

// MarshalAuthorization serializes an Authorization to JSON bytes
func MarshalAuthorization(auth *types.Authorization) ([]byte, error) {
	if auth == nil {
		return nil, fmt.Errorf("cannot marshal nil Authorization")
	}

	data, err := json.Marshal(auth)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Authorization to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalAuthorization deserializes an Authorization from JSON bytes
func UnmarshalAuthorization(data []byte) (*types.Authorization, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var auth types.Authorization
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to Authorization: %w", err)
	}

	return &auth, nil
}
