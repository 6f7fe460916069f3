// Package models lists the OpenAI chat models that can back the dev
// server's openai translation engine.
package models
