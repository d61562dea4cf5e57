package usecase

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeHealRequest сериализует запрос восстановления в protobuf (google.protobuf.Struct).
func EncodeHealRequest(req *HealRequest) ([]byte, error) {
	st, err := structpb.NewStruct(map[string]any{
		"product_id":   float64(req.ProductID),
		"reason":       req.Reason,
		"requested_at": req.RequestedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("encode heal request: %w", err)
	}

	return proto.Marshal(st)
}

// DecodeHealRequest — обратная операция для consumer'а.
func DecodeHealRequest(data []byte) (*HealRequest, error) {
	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode heal request: %w", err)
	}

	fields := st.GetFields()
	id := int64(fields["product_id"].GetNumberValue())
	if id <= 0 {
		return nil, fmt.Errorf("decode heal request: invalid product_id %d", id)
	}

	req := &HealRequest{
		ProductID: id,
		Reason:    fields["reason"].GetStringValue(),
	}
	if ts := fields["requested_at"].GetStringValue(); ts != "" {
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			req.RequestedAt = t
		}
	}

	return req, nil
}
