package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfirmer struct {
	answer bool
	err    error
	calls  int
	title  string
}

func (f *fakeConfirmer) Confirm(_ context.Context, title, _ string) (bool, error) {
	f.calls++
	f.title = title
	return f.answer, f.err
}

func TestConfirmRemoval(t *testing.T) {
	removal := Removal{
		AirnodeAddress: "0xA30CA71Ba54E83127214D3271aEA8F5D6bD4Dace",
		Stage:          "dev",
		CloudProvider:  "aws",
		Region:         "us-east-1",
	}

	tests := []struct {
		name        string
		confirmer   *fakeConfirmer
		skip        bool
		interactive bool
		wantErr     error
		wantCalls   int
	}{
		{"skipped with --yes", &fakeConfirmer{}, true, true, nil, 0},
		{"not interactive", &fakeConfirmer{}, false, false, nil, 0},
		{"confirmed", &fakeConfirmer{answer: true}, false, true, nil, 1},
		{"declined", &fakeConfirmer{}, false, true, ErrAborted, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ConfirmRemoval(context.Background(), tt.confirmer, removal, tt.skip, tt.interactive)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, tt.confirmer.calls)
		})
	}
}

func TestConfirmRemoval_PromptError(t *testing.T) {
	promptErr := errors.New("no tty")
	c := &fakeConfirmer{err: promptErr}

	err := ConfirmRemoval(context.Background(), c, Removal{AirnodeAddress: "0xabc", Stage: "dev"}, false, true)
	assert.ErrorIs(t, err, promptErr)
	assert.Equal(t, "Remove Airnode 0xabc (stage dev)?", c.title)
}

func TestRemoval_Description(t *testing.T) {
	r := Removal{CloudProvider: "gcp", Region: "us-east1"}
	assert.Equal(t, "All gcp resources in us-east1 and every stored version of this stage will be deleted.", r.Description())
}
