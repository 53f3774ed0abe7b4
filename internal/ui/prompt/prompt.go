// Package prompt asks the operator to confirm destructive actions.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// ErrAborted is returned when the operator declines the confirmation.
var ErrAborted = errors.New("aborted by user")

// Removal describes the deployment a removal would delete.
type Removal struct {
	AirnodeAddress string
	Stage          string
	CloudProvider  string
	Region         string
}

// Title returns the confirmation question.
func (r Removal) Title() string {
	return fmt.Sprintf("Remove Airnode %s (stage %s)?", r.AirnodeAddress, r.Stage)
}

// Description explains what the removal deletes.
func (r Removal) Description() string {
	return fmt.Sprintf("All %s resources in %s and every stored version of this stage will be deleted.",
		r.CloudProvider, r.Region)
}

// Confirmer asks for a yes/no answer.
type Confirmer interface {
	Confirm(ctx context.Context, title, description string) (bool, error)
}

// Huh confirms with a huh form on the terminal.
type Huh struct{}

func (Huh) Confirm(ctx context.Context, title, description string) (bool, error) {
	var confirmed bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Remove").
				Negative("Cancel").
				Value(&confirmed),
		),
	).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return confirmed, nil
}

// Interactive reports whether stdin and stdout are both terminals.
func Interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// ConfirmRemoval asks c to confirm the removal unless skip is set or the
// session is not interactive. It returns ErrAborted when the operator declines.
func ConfirmRemoval(ctx context.Context, c Confirmer, r Removal, skip, interactive bool) error {
	if skip || !interactive {
		return nil
	}
	ok, err := c.Confirm(ctx, r.Title(), r.Description())
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}
	return nil
}
