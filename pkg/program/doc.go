/*
Package program defines the contract of automation programs and the dialog exchange
that lets a running program wait for a remote operator.

Routines embed *Base, which supplies option storage, the dialog helper and a state
machine factory wired to the program's logger, and implement Run:

	type Greeter struct{ *program.Base }

	func (g *Greeter) Run(ctx context.Context, bot *switchbot.Bot) error {
		answer, err := g.Ask(ctx, bot, domain.NewDialog("Hello", "Continue?", "Yes", "No"))
		if err != nil {
			return err
		}
		g.Logger.Info("Operator answered", "answer", answer)
		return nil
	}

The Catalog maps names to factories; the session manager builds all programs from
it once per reload.
*/
package program
