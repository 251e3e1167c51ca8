/*
Package statemachine implements the execution model of automation programs.

A program builds an initial State and hands it to a Machine. Run executes the
current state, replaces it with the returned successor and repeats until a state
returns nil. There is no step limit and no cycle detection: a state may hand back
a fresh instance of an earlier state ("try again") as often as it likes.

Every state is a suspension point. Sleep and Poll are the cooperative waiting
primitives states should use so that cancelling the context stops a program
promptly.
*/
package statemachine
