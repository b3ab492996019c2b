package signer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"

	"github.com/altuslabsxyz/txrelay/internal/txsubmit"
)

// ConfirmFunc asks the user to approve a signing request.
type ConfirmFunc func(label string) (bool, error)

// PromptSigner asks for approval before delegating to another signer.
// Declining yields ErrRejected, which the submitter never retries.
type PromptSigner struct {
	next    txsubmit.Signer
	confirm ConfirmFunc
}

// NewPromptSigner wraps next with a promptui confirmation on the terminal.
func NewPromptSigner(next txsubmit.Signer) *PromptSigner {
	return &PromptSigner{next: next, confirm: terminalConfirm(os.Stdin, os.Stdout)}
}

// NewPromptSignerWith wraps next with a custom confirmation.
func NewPromptSignerWith(next txsubmit.Signer, confirm ConfirmFunc) *PromptSigner {
	return &PromptSigner{next: next, confirm: confirm}
}

// SignTransaction prompts, then signs if approved.
func (p *PromptSigner) SignTransaction(ctx context.Context, raw []byte) ([]byte, error) {
	ok, err := p.confirm(fmt.Sprintf("Sign transaction (%s)", Describe(raw)))
	if err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil, ErrRejected
		}
		return nil, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	if !ok {
		return nil, ErrRejected
	}
	return p.next.SignTransaction(ctx, raw)
}

// Interactive reports whether stdin is a terminal that can answer prompts.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func terminalConfirm(in io.ReadCloser, out io.WriteCloser) ConfirmFunc {
	return func(label string) (bool, error) {
		prompt := promptui.Prompt{
			Label:     label,
			IsConfirm: true,
			Stdin:     in,
			Stdout:    out,
		}
		if _, err := prompt.Run(); err != nil {
			return false, err
		}
		return true, nil
	}
}
