// Package ui renders flashing progress and results in the terminal.
//
// Display adapts the observer events emitted by the protocol engines into an
// in-place progress bar and styled status lines. It deliberately renders
// standalone (no alternate screen, no event loop): engine events arrive
// synchronously mid-protocol and the output must keep up without buffering.
package ui
