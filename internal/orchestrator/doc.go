// Package orchestrator answers one question at a time against an indexed
// codebase.
//
// Each call to Answer runs the same pipeline:
//
//  1. Ask the model to rewrite the question into a standalone one using the
//     conversation so far. A sentinel reply keeps the original question.
//  2. Retrieve the top-k documents for the effective question.
//  3. Assemble the prompt from fixed instructions, the retrieved files,
//     the formatted history and the effective question.
//  4. Stream the answer to the output writer. Transient stream failures are
//     retried up to three attempts with a linear backoff; after that the
//     call fails with ErrExhaustedRetries.
//
// The question and answer are appended to the session history only when the
// whole pipeline succeeds.
package orchestrator
