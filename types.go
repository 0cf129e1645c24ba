package effers

import "github.com/jward/effers/internal/store"

// Public type aliases for the manifest types returned by the Engine.
// These are Go type aliases (=), identical to the internal types at compile
// time. External consumers use these names; no conversion is needed.

type Store = store.Store
type Run = store.Run
type File = store.File
type Program = store.Program
type Layer = store.Layer
type Operation = store.Operation
