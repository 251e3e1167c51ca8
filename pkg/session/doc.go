/*
Package session owns the lifecycle of the single program that may drive the console.

The Manager enforces single-flight execution: starting a program displaces the one
that is running, stopping clears it immediately, and a program that ends on its own
clears the session only if it is still the current one. Every change is pushed to
connected clients through a ports.Broadcaster, and snapshots taken with WithSnapshot
never observe a half-applied transition.

When a ports.DistributedLocker is configured, the manager also holds a lease on the
console while a program runs, so two server processes wired to the same controller
cannot drive it at once.
*/
package session
