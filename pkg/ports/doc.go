/*
Package ports defines the driven ports (interfaces) of the automation engine.

These interfaces decouple programs and the session manager from the concrete
peripherals and transport, so tests can substitute fakes.

# Key Interfaces

  - Controller: sends button presses and stick movements to the console.
  - FrameSource: pulls the latest frame from the capture device.
  - Broadcaster / DialogPresenter: push events and dialogs to connected clients.
  - DistributedLocker: optional lease so only one host drives a console.
*/
package ports
