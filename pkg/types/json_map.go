package types

// JSONMap holds loosely-structured metadata persisted as jsonb.
type JSONMap map[string]any
