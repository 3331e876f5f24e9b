package register

import (
	"context"
	"errors"
)

// ErrConfirmationRequired is returned by a Confirmer that cannot answer yet,
// such as an HTTP request that carried no answer to the prompt.
var ErrConfirmationRequired = errors.New("register: confirmation required")

// Prompt describes a confirmation dialog.
type Prompt struct {
	Title        string `json:"title"`
	Text         string `json:"text"`
	Icon         string `json:"icon"`
	ConfirmLabel string `json:"confirm_label"`
	CancelLabel  string `json:"cancel_label"`
}

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt Prompt) (bool, error)
}

// ConfirmerFunc adapts a function to the Confirmer interface.
type ConfirmerFunc func(ctx context.Context, prompt Prompt) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, prompt Prompt) (bool, error) {
	return f(ctx, prompt)
}

// DeleteOnePrompt is shown before a single appointment is deleted.
func DeleteOnePrompt() Prompt {
	return Prompt{
		Title:        "Are you sure?",
		Text:         "You won't be able to revert this!",
		Icon:         "warning",
		ConfirmLabel: "Yes, delete it!",
		CancelLabel:  "Cancel",
	}
}

// DeleteSelectedPrompt is shown once before a batch of appointments is deleted.
func DeleteSelectedPrompt() Prompt {
	return Prompt{
		Title:        "Are you sure?",
		Text:         "You won't be able to revert this!",
		Icon:         "warning",
		ConfirmLabel: "Yes, delete all selected!",
		CancelLabel:  "Cancel",
	}
}
