// Package mapping allocates and persists the integer handles that identify
// sound switch devices to the host device registry.
//
// Every endpoint attribute (node, endpoint, defaultVolume|toneId) is keyed by
// an external id such as "12_1_toneId" and owns exactly one handle in
// [MinHandle, MaxHandle]. Handles are a scarce, recyclable resource: a
// released handle is reused by the next allocation when it is the lowest
// free value.
//
// The Allocator keeps the full mapping in memory, writes it through a Store
// on every mutation and then reloads it, so a handle freed by an external
// removal is never handed out twice.
//
// Thread Safety:
//
// Allocator methods are safe for concurrent use.
package mapping
