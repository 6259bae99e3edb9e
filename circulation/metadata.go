package circulation

import (
	"errors"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var ErrMarshalingMetadataFailed = errors.New("marshaling action metadata failed")

// ActionMetadata is stored as JSON with every reservation, borrow and return row,
// so log rows can be correlated with the action (and its logs and spans) that wrote them.
type ActionMetadata struct {
	ActionID   string `json:"ActionID"`
	ActionType string `json:"ActionType"`
}

// BuildActionMetadata creates the metadata for one action.
func BuildActionMetadata(actionID uuid.UUID, actionType string) ActionMetadata {
	return ActionMetadata{
		ActionID:   actionID.String(),
		ActionType: actionType,
	}
}

// JSON returns the metadata as a JSON document, bound as a text parameter.
func (m ActionMetadata) JSON() (string, error) {
	data, err := jsoniter.ConfigFastest.Marshal(m)
	if err != nil {
		return "", errors.Join(ErrMarshalingMetadataFailed, err)
	}

	return string(data), nil
}

// ParseActionMetadata reads metadata JSON as stored in the log rows.
func ParseActionMetadata(data []byte) (ActionMetadata, error) {
	var metadata ActionMetadata
	if err := jsoniter.ConfigFastest.Unmarshal(data, &metadata); err != nil {
		return ActionMetadata{}, errors.Join(ErrMarshalingMetadataFailed, err)
	}

	return metadata, nil
}
