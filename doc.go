// Package effers generates effect-composition programs from annotated Go
// functions.
//
// A function whose doc comment carries a program directive declares the
// effects it uses:
//
//	//effers:program Counter => Printer(Print(shared) as p), Incrementer(Increment(mutable))
//	func count(val uint8) uint8 {
//		p("counting")
//		return Increment(val)
//	}
//
// Bare calls to declared operations (or their aliases) are rewritten to
// calls through the interface method expression, with the handler supplied
// by the program value. The function itself becomes the Run method of the
// last type in a chain of generic program types, one per effect:
//
//	Counter{}.Add(stdout{}).Add(&adder{}).Run(3)
//
// Handlers are attached in declaration order. Each Add method only exists
// once the previous effect is provided, and Run only exists on the complete
// chain, so a missing or misplaced handler is a compile error.
//
// # Files
//
// Input files carry the constraint "//go:build effers" so that they are
// excluded from normal builds. For each input prog.go the generator writes
// prog_effers.go, guarded by "//go:build !effers", containing every
// declaration of the input with annotated functions replaced by their
// programs.
//
// # Usage
//
// Create an Engine and generate a directory, a set of packages or single
// files:
//
//	e, err := effers.New(".effers/manifest.db", effers.WithLogger(logger))
//	if err != nil { ... }
//	defer e.Close()
//
//	report, err := e.GenerateDirectory(ctx, ".")
//
// Every run is recorded in the manifest, a SQLite database of the files,
// programs, layers and operations it produced. [Engine.Programs] and
// [Engine.Program] read it back. Files whose input and output are unchanged
// since they were recorded, and that were generated with the same options,
// are skipped unless [WithForce] is set. When a recorded file loses its last
// directive, its output is deleted and the manifest forgets it.
//
// [Engine.Query] searches recorded programs by name pattern, by the effects
// they use or by location, with sorting and paging:
//
//	effect := "Logger"
//	page, err := e.Query().SearchPrograms("My*",
//		effers.ProgramFilter{Effect: &effect},
//		effers.Sort{Field: effers.SortByName},
//		effers.Pagination{Limit: 20})
//
// # Naming
//
// A directive without "Name =>" names its program after the function, with
// the first letter upper-cased and underscores removed (count_things gives
// CountThings). [WithNamer] replaces that rule, for example with a Risor
// script loaded by the runtime package.
package effers
