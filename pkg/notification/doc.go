// Package notification defines the domain model shared by the dispatch
// pipeline: the notification request, severity levels with their priority
// weights, and the supported delivery channels.
//
// Requests are immutable once created. The change-detection layer builds
// them; the dispatch pipeline only reads them.
package notification
