// Package schema holds the entity model: field descriptors with type tags and
// modifiers, immutable schemas assembled from them, and a registry that
// memoizes schemas by name and resolves by-name references lazily so cyclic
// entity graphs can be declared without ordering constraints.
package schema
