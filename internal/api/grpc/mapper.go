package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"fishtank-backend/internal/domain"
)

// toStruct encodes v through its JSON form, so Struct field names are the
// json tags of the domain types.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}

func MapFishtankToProto(f *domain.Fishtank) (*structpb.Struct, error) {
	return toStruct(map[string]any{"fishtank": f})
}

func MapJoinRequestToProto(r *domain.JoinRequest) (*structpb.Struct, error) {
	return toStruct(map[string]any{"join_request": r})
}

func MapPendingToProto(reqs []domain.PendingJoinRequest) (*structpb.Struct, error) {
	if reqs == nil {
		reqs = []domain.PendingJoinRequest{}
	}
	return toStruct(map[string]any{"requests": reqs})
}

func MapResolutionToProto(res *domain.Resolution) (*structpb.Struct, error) {
	return toStruct(map[string]any{"resolution": res})
}

func stringField(in *structpb.Struct, name string) string {
	return in.GetFields()[name].GetStringValue()
}

func boolField(in *structpb.Struct, name string) bool {
	return in.GetFields()[name].GetBoolValue()
}
