package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	keysDomain "github.com/allisson/nostr-signer/internal/keys/domain"
	keysUseCase "github.com/allisson/nostr-signer/internal/keys/usecase"
)

// RunSignEvent signs an event with the selected key and prints the signed
// event as JSON. tagsJSON is an optional JSON array of string arrays.
func RunSignEvent(
	ctx context.Context,
	keyUseCase keysUseCase.KeyUseCase,
	writer io.Writer,
	input *keysDomain.SignEventInput,
	tagsJSON string,
) error {
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &input.Tags); err != nil {
			return fmt.Errorf("invalid tags: %w", err)
		}
	}

	event, err := keyUseCase.SignEvent(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to sign event: %w", err)
	}

	return writeJSON(writer, event)
}
