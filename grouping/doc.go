// Package grouping splits a class roster into random groups and draws
// students from the result without repeats.
//
// Partition is a pure function: it shuffles its input with the supplied
// generator and cuts it into groups of the requested size, handling
// leftovers according to a Strategy. Picker is the stateful counterpart used
// for "pick a random student": it drains a pool built from the latest
// Assignment and refills it only once everyone has been picked.
//
// Both accept a *rand.Rand so callers can inject a seeded generator.
package grouping
