// Package tracking retains committed document versions and reports what
// changed between them.
//
// Versions share structure, so holding a reference to an old State is
// cheap. The Store keeps a bounded window of recent versions for lookup by
// ID, and named pins that keep a version alive regardless of the window. A
// version leaves the store when it falls out of the window and no pin
// references it; after that it is retired as soon as no caller holds it
// either.
//
// # Changes
//
// Diff compares two versions record by record:
//
//	changes := tracking.Diff(older, newer)
//	for _, c := range changes {
//	    fmt.Println(c) // "modified 12 (text)"
//	}
//
// A record that was never written between the two versions is the same
// pointer in both, so unchanged subtrees cost nothing to compare beyond the
// map walk.
package tracking
