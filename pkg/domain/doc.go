/*
Package domain contains the core models shared by the automation engine and its adapters.

It is kept free of I/O so that programs, the session manager and the transport can all
depend on it.

# Key Entities

  - Option: a typed, user-adjustable parameter declared by a program.
  - Dialog: a question posed to the remote operator with a fixed set of answers.
  - ProgramMetadata: the name, description and options of a loaded program.
  - Messages: the payloads exchanged with connected clients.
*/
package domain
