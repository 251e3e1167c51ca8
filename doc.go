/*
Package switchbot remotely operates a game console through scripted automation programs.

A program is a sequence of discrete states (press a button, wait, look at the video feed,
branch) executed unattended, occasionally pausing to ask a remote operator a question.
Many programs can be loaded but only one runs at a time; connected clients observe and
control execution over a WebSocket connection.

# Architecture

  - pkg/statemachine drives a program's states until one of them yields no successor.
  - pkg/program defines the Program contract, the embeddable Base and the dialog exchange
    that suspends a state until an operator answers.
  - pkg/session owns the single running session: start, displacement, cancellation,
    completion and consistent snapshots for joining clients.
  - pkg/observability keeps recent program log lines and exposes Prometheus metrics.
  - internal/adapters hold the serial controller, the video connector, the Redis console
    lease and the WebSocket transport.

# Usage

	catalog := program.NewCatalog()
	programs.Register(catalog, programs.Config{OutputDir: "."})

	bot := &switchbot.Bot{Controller: serialConn, Frames: videoConn, Display: hub}
	mgr, err := session.NewManager(catalog, bot, session.WithBroadcaster(hub))
	if err != nil {
		log.Fatal(err)
	}

	if err := mgr.Start(ctx, "Test Program", nil); err != nil {
		log.Fatal(err)
	}
*/
package switchbot
