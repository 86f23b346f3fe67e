// Package testutil contains builders and assertions shared by the package
// tests: conversation builders and event stream collection.
package testutil
