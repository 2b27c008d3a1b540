package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/roach88/cloudsync/internal/driver"
)

// Requests and replies travel as google.protobuf.Struct values over the
// default proto codec; calls without a result reply google.protobuf.Empty.
// The types below fix the field layout inside each Struct.

// VolumeRequest carries one volume.
type VolumeRequest struct {
	Volume driver.Volume `json:"volume"`
}

// AttachRequest pairs a volume with an instance.
type AttachRequest struct {
	Volume     driver.Volume   `json:"volume"`
	Instance   driver.Instance `json:"instance"`
	Mountpoint string          `json:"mountpoint,omitempty"`
}

// StatsRequest asks for pool capacity.
type StatsRequest struct {
	Refresh bool `json:"refresh"`
}

// InstanceRequest carries one instance. Hard applies to reboot only.
type InstanceRequest struct {
	Instance driver.Instance `json:"instance"`
	Hard     bool            `json:"hard,omitempty"`
}

// toStruct encodes v, a JSON-tagged struct, as a Struct message.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return structpb.NewStruct(fields)
}

// fromStruct decodes s into v. Unknown fields are ignored so either end can
// add fields first.
func fromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}
