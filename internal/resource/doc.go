// Package resource defines the data model shared by every sync component:
// attribute values and their canonical encoding, the three resource kinds,
// mapping rows and the deterministic sync keys that pair objects across the
// LOCAL and REMOTE clouds.
//
// Attribute values form a closed set (Null, String, Int, Bool, List, Attrs).
// Snapshots and mapping ids are derived from canonical JSON, so two equal
// attribute sets always encode to the same bytes.
package resource
