// Package gen synthesizes effect programs from annotated Go functions.
//
// A program directive names the effects a function calls:
//
//	//effers:program MyCoolProgram => Printer(Print(shared) as p), Logger(Debug(mutable))
//	func myProgram(val uint8) uint8 { ... }
//
// From it Generate produces, in order:
//
//  1. the root type MyCoolProgram with no handlers attached;
//  2. one layer type per effect (MyCoolProgramWithPrinter[A],
//     MyCoolProgramWithPrinterLogger[A, B]), each a pair of the previous
//     layer and the newest handler;
//  3. one Add method per layer, so handlers attach in declaration order:
//     MyCoolProgram{}.Add(printer).Add(logger);
//  4. one generic constructor per layer, which keeps concrete handler types;
//  5. the Run method on the last layer, holding the function body with every
//     effect call rewritten into a qualified call on its handler, e.g.
//     p("x") becomes Printer.Print(prog.Prev.Handler, "x").
//
// Handler j of N is reached through N-j-1 Prev fields and then Handler.
// Attaching handlers out of order, or calling Run before every handler is
// attached, does not type-check.
package gen
