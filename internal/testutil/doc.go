// Package testutil provides fixtures shared by the package tests: a
// throwaway SQLite store with entity tables for a set of types, and
// helpers to create and probe entities in it.
package testutil
