// Package toolcall extracts structured tool invocations from free-form LLM
// output. Models are unreliable about committing to a single call format, so
// the parser layers several independent extraction strategies and stops at
// the first one that yields results.
package toolcall
