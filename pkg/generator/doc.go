// Package generator turns rendered prompts into manual test cases and autotest code
// through a pluggable text generation provider.
//
// Invariants:
// - Callers never see provider errors as text: a failed call yields a fixed
//   user-facing replacement string together with a non-nil error.
// - Every call is bounded by the configured timeout, traced and counted.
//
// Usage:
//
//	provider, _ := generator.NewProvider(ctx, generator.ProviderConfig{Name: "gemini", APIKey: key})
//	gen := generator.New(provider, prompts, generator.WithTimeout(time.Minute))
//	manual, err := gen.ManualTests(ctx, "Login with valid credentials")
package generator
