// Package util contains small helpers shared by the client, the server and the
// document store: seeded FNV-1a string hashing and bucket ids.
package util
