package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
)

// remind sends the reminders of the meetings starting within window. Meant to be run periodically.
func (cli *commandLine) remind(window time.Duration) error {
	if err := vala.BeginValidation().Validate(
		vala.GreaterThan(int(window/time.Minute), 0, "window (minutes)"),
	).Check(); err != nil {
		return err
	}
	n, err := cli.meetingSvc.SendReminders(context.Background(), window)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d meeting(s) reminded\n", n)
	return nil
}
