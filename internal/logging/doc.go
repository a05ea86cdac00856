// Package logging builds the slog.Logger shared by the control and agent nodes.
//
// Text output goes through a colorized handler; JSON output uses the
// standard slog JSON handler. The debug flag forces debug level so that
// protocol traces (handshakes, undelivered content, pongs) are visible.
package logging
