// Package bridge exposes local USB serial ports over WebSocket.
//
// socflash-bridge runs on the machine the device is physically plugged into.
// A remote socflash client attaches with
//
//	GET /attach?vid=1782&pid=4d00
//
// which the bridge upgrades to a WebSocket session bound to the first serial
// port matching those USB IDs. From then on every binary message from the
// client is written verbatim to the port and every chunk read from the port
// is sent back as one binary message, so the protocol engines behave exactly
// as they do against local hardware.
//
// GET /ports lists the visible USB serial ports as JSON. A port serves one
// client at a time; concurrent attaches are answered with 409.
//
// When announcement is enabled the bridge also registers itself over mDNS so
// clients can find it without configuration (see the discovery package).
package bridge
