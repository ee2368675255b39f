package codec

// Codec encodes/decodes entity values E to []byte for storage.
type Codec[E any] interface {
	Encode(E) ([]byte, error)
	Decode([]byte) (E, error)
}

// Mapper converts entity values to and from their wire-format map shape.
// Repositories use it for partial field updates; the cache core never sees
// maps.
type Mapper[E any] interface {
	ToMap(E) (map[string]any, error)
	FromMap(map[string]any) (E, error)
}
