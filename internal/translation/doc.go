// Package translation holds the machine translation engines used by the
// local dev server (echo, OpenAI and Gemini), an in-memory result cache and
// helpers that keep and persist batch results in target order.
package translation
