// Package llm contains adapters for the external planning oracle. It
// abstracts away provider-specific APIs and normalizes the structured plan
// drafts consumed by the agent runtime.
package llm
