// Package path builds and validates the alternating collection/document
// paths used to address entries in a backend.
//
// A collection path has an odd number of segments and a document path an
// even number:
//
//	Col("users")                    -> "users"
//	Col("users").Doc("u1")          -> "users/u1"
//	Col("users").Doc("u1").Col("orders") -> "users/u1/orders"
package path

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalid = errors.New("path: invalid path")

// Collection addresses a named group of documents.
type Collection struct {
	segs []string
}

// Document addresses a single document inside a collection.
type Document struct {
	segs []string
}

// Col starts a top-level collection path.
func Col(name string) Collection {
	return Collection{segs: []string{name}}
}

// NewID returns a fresh random document id.
func NewID() string { return uuid.NewString() }

// Doc extends the collection path with a document id.
func (c Collection) Doc(id string) Document {
	return Document{segs: appendSeg(c.segs, id)}
}

// NewDoc extends the collection path with a freshly generated id.
func (c Collection) NewDoc() Document { return c.Doc(NewID()) }

// Name returns the last segment (the collection's own name).
func (c Collection) Name() string {
	if len(c.segs) == 0 {
		return ""
	}
	return c.segs[len(c.segs)-1]
}

// Parent returns the document owning this subcollection. ok is false for
// top-level collections.
func (c Collection) Parent() (Document, bool) {
	if len(c.segs) < 2 {
		return Document{}, false
	}
	return Document{segs: c.segs[:len(c.segs)-1]}, true
}

func (c Collection) String() string { return strings.Join(c.segs, "/") }

// Validate checks the path shape: an odd number of segments, each non-empty
// and free of '/'.
func (c Collection) Validate() error {
	if len(c.segs)%2 != 1 {
		return fmt.Errorf("%w: %q is not a collection path", ErrInvalid, c.String())
	}
	return validateSegs(c.segs)
}

// Col extends the document path with a subcollection name.
func (d Document) Col(name string) Collection {
	return Collection{segs: appendSeg(d.segs, name)}
}

// ID returns the document id (the last segment).
func (d Document) ID() string {
	if len(d.segs) == 0 {
		return ""
	}
	return d.segs[len(d.segs)-1]
}

// Parent returns the collection containing this document.
func (d Document) Parent() Collection {
	if len(d.segs) < 2 {
		return Collection{}
	}
	return Collection{segs: d.segs[:len(d.segs)-1]}
}

func (d Document) String() string { return strings.Join(d.segs, "/") }

// Validate checks the path shape: a positive even number of segments, each
// non-empty and free of '/'.
func (d Document) Validate() error {
	if len(d.segs) == 0 || len(d.segs)%2 != 0 {
		return fmt.Errorf("%w: %q is not a document path", ErrInvalid, d.String())
	}
	return validateSegs(d.segs)
}

// ParseDocument parses "coll/id[/coll/id...]" into a Document.
func ParseDocument(s string) (Document, error) {
	d := Document{segs: strings.Split(s, "/")}
	if err := d.Validate(); err != nil {
		return Document{}, err
	}
	return d, nil
}

// ParseCollection parses "coll[/id/coll...]" into a Collection.
func ParseCollection(s string) (Collection, error) {
	c := Collection{segs: strings.Split(s, "/")}
	if err := c.Validate(); err != nil {
		return Collection{}, err
	}
	return c, nil
}

// appendSeg copies before appending so derived paths never alias a shared
// backing array.
func appendSeg(segs []string, s string) []string {
	out := make([]string, len(segs), len(segs)+1)
	copy(out, segs)
	return append(out, s)
}

func validateSegs(segs []string) error {
	for _, s := range segs {
		if s == "" || strings.Contains(s, "/") {
			return fmt.Errorf("%w: bad segment %q", ErrInvalid, s)
		}
	}
	return nil
}
