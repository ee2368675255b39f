package codec

import "encoding/json"

type JSON[E any] struct{}

func (JSON[E]) Encode(v E) ([]byte, error) { return json.Marshal(v) }
func (JSON[E]) Decode(b []byte) (E, error) {
	var v E
	err := json.Unmarshal(b, &v)
	return v, err
}

// JSONMap is a Mapper built on a JSON round-trip. Field names follow the
// entity's json tags. Numeric values surface as float64, as usual for
// untyped JSON decoding.
type JSONMap[E any] struct{}

func (JSONMap[E]) ToMap(v E) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (JSONMap[E]) FromMap(m map[string]any) (E, error) {
	var v E
	b, err := json.Marshal(m)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(b, &v)
	return v, err
}
