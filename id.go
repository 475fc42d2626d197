package chatflow

import "github.com/enromatics/chatflow/id"

// ID is the primary identifier type for all chatflow entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
