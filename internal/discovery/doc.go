// Package discovery locates socflash-bridge instances with mDNS.
//
// A bridge exposes a workbench machine's serial ports over websocket so that
// socflash can drive a device attached to another host. Bridges advertise
// themselves using the "_socflash._tcp" service type; this package browses
// for those advertisements and, on the bridge side, registers them.
//
// # Discovery Process
//
//  1. Broadcasts mDNS queries on the local network
//  2. Listens for service advertisements from running bridges
//  3. Collects endpoint information (hostname, IP, port, TXT metadata)
//  4. Returns the discovered bridges after the timeout period
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Bridge and client must share a local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
