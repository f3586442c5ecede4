// Package draft produces task drafts and rewrites from a language model.
//
// Completion text is untrusted. It is sanitized into a single JSON object
// and then strictly decoded; anything that does not survive both steps is
// reported as a GenerationError and never reaches the board.
package draft
