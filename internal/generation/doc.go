// Package generation defines the boundary between the orchestration core
// and the external content generation service, plus the encoders that
// turn generated question sets into downloadable artifacts.
//
// The Generator interface is implemented by internal/platform/genservice
// (HTTP client for the hosted extraction service) and by
// internal/platform/gemini (direct Gemini generation).
package generation
