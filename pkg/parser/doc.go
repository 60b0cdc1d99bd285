// Package parser frames exchange multicast packets and hands each record to
// the decoder registered for its message code.
//
// Two protocol families are supported. FO packets carry a count of
// length-prefixed compressed sub-messages, each holding a header and an
// array of fixed-stride records. CM packets carry a 5-byte batch header and
// a payload of self-describing records that is either raw or made of one
// or more compressed chunks.
//
// Parse never returns an error and never panics: malformed input is skipped
// at the smallest unit possible and reported through Diagnostics.
//
// A Parser owns its scratch buffers and must not be shared between
// goroutines. Several parsers may share one codec.
package parser
