// Package llm adapts chat model providers to one Backend interface.
//
// Three providers are supported, chosen once by New from a provider name:
//
//   - gemini: streams over server-sent events with per-category safety
//     thresholds. A stream that cannot be framed or ends without a finish
//     reason fails with *TransientStreamError, which callers may retry.
//   - openai: streams chat completion tokens through a TokenBuffer that
//     flushes to the sink past 20 buffered characters or on a newline.
//   - ollama: single-shot generation against a local server.
//
// Every backend also answers Rewrite, used to turn a follow-up question into
// a standalone one. EffectiveQuestion interprets the result.
package llm
