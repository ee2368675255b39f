package path

import (
	"errors"
	"testing"
)

func TestBuildAndString(t *testing.T) {
	c := Col("users")
	if c.String() != "users" {
		t.Fatalf("got %q", c.String())
	}
	d := c.Doc("u1")
	if d.String() != "users/u1" {
		t.Fatalf("got %q", d.String())
	}
	sub := d.Col("orders").Doc("o7")
	if sub.String() != "users/u1/orders/o7" {
		t.Fatalf("got %q", sub.String())
	}
}

func TestAccessors(t *testing.T) {
	d := Col("users").Doc("u1").Col("orders").Doc("o7")
	if d.ID() != "o7" {
		t.Fatalf("ID: got %q", d.ID())
	}
	c := d.Parent()
	if c.Name() != "orders" {
		t.Fatalf("Name: got %q", c.Name())
	}
	owner, ok := c.Parent()
	if !ok || owner.String() != "users/u1" {
		t.Fatalf("Parent: ok=%v %q", ok, owner.String())
	}
	if _, ok := Col("users").Parent(); ok {
		t.Fatalf("top-level collection should have no parent")
	}
}

// Derived paths must not alias each other's backing arrays.
func TestNoAliasing(t *testing.T) {
	d := Col("users").Doc("u1")
	a := d.Col("orders")
	b := d.Col("carts")
	if a.String() != "users/u1/orders" || b.String() != "users/u1/carts" {
		t.Fatalf("siblings alias: %q / %q", a.String(), b.String())
	}
}

func TestValidate(t *testing.T) {
	if err := Col("users").Validate(); err != nil {
		t.Fatalf("collection: %v", err)
	}
	if err := Col("users").Doc("u1").Validate(); err != nil {
		t.Fatalf("document: %v", err)
	}

	// wrong parity
	if err := (Document{segs: []string{"users"}}).Validate(); err == nil {
		t.Fatalf("odd document path should fail")
	}
	if err := (Collection{segs: []string{"users", "u1"}}).Validate(); err == nil {
		t.Fatalf("even collection path should fail")
	}
	if err := (Document{}).Validate(); err == nil {
		t.Fatalf("empty document path should fail")
	}

	// bad segments
	if err := Col("").Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("empty segment: %v", err)
	}
	if err := Col("users").Doc("a/b").Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("slash in segment: %v", err)
	}
}

func TestParseRoundTrip(t *testing.T) {
	d, err := ParseDocument("users/u1/orders/o7")
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if d.String() != "users/u1/orders/o7" {
		t.Fatalf("got %q", d.String())
	}

	c, err := ParseCollection("users/u1/orders")
	if err != nil {
		t.Fatalf("ParseCollection: %v", err)
	}
	if c.String() != "users/u1/orders" {
		t.Fatalf("got %q", c.String())
	}

	if _, err := ParseDocument("users"); err == nil {
		t.Fatalf("collection string should not parse as document")
	}
	if _, err := ParseCollection("users/u1"); err == nil {
		t.Fatalf("document string should not parse as collection")
	}
	if _, err := ParseDocument(""); err == nil {
		t.Fatalf("empty string should not parse")
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if a == "" || a == b {
		t.Fatalf("ids not unique: %q %q", a, b)
	}
	d := Col("users").NewDoc()
	if err := d.Validate(); err != nil {
		t.Fatalf("NewDoc path invalid: %v", err)
	}
}
