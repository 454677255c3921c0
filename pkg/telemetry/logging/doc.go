// Package logging builds the process-wide structured logger.
//
// The logger is a plain *slog.Logger so components can depend on the
// standard library interface rather than a wrapper type. Two handler
// decorators are stacked underneath it: one injects request and document
// correlation IDs from the context, and one scrubs identifier-shaped
// values (SSNs, MRNs, emails, phone numbers) so the engine's own logs
// cannot leak the text it redacts.
package logging
