/*
Package observability provides the live view of what the running program is doing.

Program log records flow through a BroadcastHandler, which formats each record,
keeps the most recent lines in a LogBuffer for clients that connect later and pushes
every line to the connected clients in the order it was produced. Metrics exposes
prometheus collectors for the lifecycle, dialogs and controller traffic.
*/
package observability
