package rpc

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestWeb3IteratorRoundRobin(t *testing.T) {
	c := qt.New(t)

	e1 := &Web3Endpoint{ChainID: 1, URI: "https://one"}
	e2 := &Web3Endpoint{ChainID: 1, URI: "https://two"}
	it := NewWeb3Iterator(e1, e2)
	c.Assert(it.Available(), qt.Equals, 2)

	first, err := it.Next()
	c.Assert(err, qt.IsNil)
	second, err := it.Next()
	c.Assert(err, qt.IsNil)
	third, err := it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(first.URI, qt.Not(qt.Equals), second.URI)
	c.Assert(third.URI, qt.Equals, first.URI)
}

func TestWeb3IteratorDisableAndReset(t *testing.T) {
	c := qt.New(t)

	e1 := &Web3Endpoint{ChainID: 1, URI: "https://one"}
	e2 := &Web3Endpoint{ChainID: 1, URI: "https://two"}
	it := NewWeb3Iterator(e1, e2)

	it.Disable("https://one")
	c.Assert(it.Available(), qt.Equals, 1)
	c.Assert(it.Disabled(), qt.Equals, 1)

	next, err := it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(next.URI, qt.Equals, "https://two")

	// disabling the last endpoint resets the pool on the next call
	it.Disable("https://two")
	c.Assert(it.Available(), qt.Equals, 0)
	next, err = it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(next, qt.Not(qt.IsNil))
	c.Assert(it.Available(), qt.Equals, 2)
}

func TestWeb3IteratorEmpty(t *testing.T) {
	c := qt.New(t)

	it := NewWeb3Iterator()
	_, err := it.Next()
	c.Assert(err, qt.Not(qt.IsNil))

	it.Add(&Web3Endpoint{ChainID: 1, URI: "https://one"})
	next, err := it.Next()
	c.Assert(err, qt.IsNil)
	c.Assert(next.URI, qt.Equals, "https://one")
}
