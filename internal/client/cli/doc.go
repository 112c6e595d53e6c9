// Package cli provides the interactive KeyAuth command-line client.
//
// It wires configuration, the HTTP API client and the hardware fingerprint
// probe into a small REPL. Typical flow: log in, activate a license key on
// this machine, then validate it or check the status of owned licenses.
//
// Key features:
//   - Register / Login / Logout, passwords read without echo
//   - Activate and validate keys with the probed hardware id
//   - Admin commands: generate, licenses, users, revoke, extend, export
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// See App and runREPL for details.
package cli
