// Package frame defines the intermediate representation of a generated method.
//
// # Model
//
// A Graph is an arena holding every Frame and Variable built for one operation.
// Frames and Variables refer to each other only through IDs (frame.ID,
// frame.VarID); no Frame owns a pointer to another.
//
// Frame is a closed tagged variant: Kind selects which payload field is
// meaningful. Consumers (the resolver and the emitter) switch exhaustively on
// Kind.
//
//   - KindCode         builder-supplied statements with declared uses/creates
//   - KindLiteral      binds a constant to a new Variable
//   - KindCall         function or method call
//   - KindConstruct    constructor call or struct literal, optionally scoped
//   - KindReturn       method exit
//   - KindIf           runtime condition guarding an inner chain
//   - KindComposite    ordered children spliced in place during arrangement
//   - KindConditional  children included only when a build-time predicate holds
//
// # Lifecycle
//
// Builders create frames through the Graph constructors and append them to a
// Method. Method.Arrange flattens composites, evaluates conditionals, links the
// chain and chooses the async mode. The resolver then binds every request to a
// Variable, and the emitter renders Go source. None of these structures survive
// compilation.
package frame
