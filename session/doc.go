// Package session keeps conversations across turns. A session is the
// history of one conversation: every rank holds one or more versions of a
// message, the last version being the visible one.
//
// The in-memory store is meant for single-process deployments and tests;
// durable backends can implement the same methods in sub-packages.
package session
