package codec

import "google.golang.org/protobuf/proto"

// Protobuf serializes entities that are generated protobuf messages.
// Messages are pointer types, so Decode needs a way to allocate a fresh
// empty one: supply a constructor through NewProtobuf. The zero value of
// this codec is NOT ready to use.
type Protobuf[E proto.Message] struct {
	empty func() E
}

// NewProtobuf builds a codec for one concrete message type. ctor must
// return a new empty message, e.g.
//
//	codec.NewProtobuf(func() *pb.Profile { return &pb.Profile{} })
func NewProtobuf[E proto.Message](ctor func() E) Protobuf[E] {
	return Protobuf[E]{empty: ctor}
}

func (c Protobuf[E]) Encode(v E) ([]byte, error) { return proto.Marshal(v) }

func (c Protobuf[E]) Decode(b []byte) (E, error) {
	v := c.empty()
	err := proto.Unmarshal(b, v)
	return v, err
}
