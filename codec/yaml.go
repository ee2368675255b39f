package codec

import "gopkg.in/yaml.v3"

// YAML is a Codec that serializes values using gopkg.in/yaml.v3. The zero
// value is ready to use. Mostly useful when documents are edited by humans
// or shared with configuration tooling; prefer JSON or Msgpack otherwise.
type YAML[E any] struct{}

func (YAML[E]) Encode(v E) ([]byte, error) { return yaml.Marshal(v) }
func (YAML[E]) Decode(b []byte) (E, error) {
	var v E
	err := yaml.Unmarshal(b, &v)
	return v, err
}
