// Package rt is the runtime support library imported by generated pipeline code.
//
// Generated methods receive a context.Context and a *Context carrying the
// per-invocation values and the service container. Methods that contain
// suspending calls return a Future instead of (any, error). The package has no
// dependencies beyond the standard library so that every compile backend can
// expose it to generated code.
package rt
