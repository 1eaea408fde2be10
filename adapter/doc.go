// Package adapter defines the uniform interface every model provider backend
// implements so the query router can address them interchangeably.
//
// Concrete backends live in subpackages:
//
//   - adapter/anthropic wraps the Anthropic Messages API (Claude).
//   - adapter/openai wraps OpenAI compatible chat completion endpoints, which
//     also covers Gemini, Grok, Manus and self-hosted open-weight servers.
//
// Mock is a deterministic in-process adapter for tests and examples.
package adapter
