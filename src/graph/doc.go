// Package graph implements the event graph: a causally-ordered, append-only
// DAG of events replicated across untrusted peers without a central
// sequencer.
//
// # Store
//
// The graph continuously grows as events spread, so the Graph object has a
// dependency on a Tree object which contains the actual data and is
// abstracted behind an interface. There are two implementations: InmemTree
// keeps everything in a map and is suitable for tests and ephemeral nodes;
// BadgerTree persists events to a key-value store on disk, keyed by their
// content-hash ID, so a node can bootstrap back from its database.
//
// # Rotation
//
// Unbounded history growth is avoided by rotation: on a fixed, deterministic
// schedule every node independently replaces its entire graph with a fresh
// genesis event. Because the rotation boundary is a pure function of
// wall-clock time, peers agree on the new genesis without communicating.
//
// # Tips
//
// Events that no other event references yet are the graph's frontier. The
// Graph maintains a layer-ordered index of these unreferenced tips; new
// events pick their parents from it and sync messages report it so that
// peers can work out which events the sender is missing.
package graph
