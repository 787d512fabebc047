// Package tui renders a live view of a running bridge's queue state.
//
// The view is read-only. It polls the bridge's status endpoint, shows a
// spinner while work is pending and lists outstanding task ids. Quit with
// 'q' or Ctrl+C.
package tui
