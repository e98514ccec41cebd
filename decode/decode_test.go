package decode_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/decode"
	"github.com/hupe1980/agentloop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStream drains the events through the decoder and returns the finalized
// result plus every delta the consumer stream observed.
func runStream(t *testing.T, dec decode.Decoder, src decode.EventSource) (*core.GenerationResult, []decode.Delta) {
	t.Helper()

	var emitted []decode.Delta
	acc := decode.NewAccumulator()

	res, err := decode.Run(src, dec, acc, func(d decode.Delta) {
		emitted = append(emitted, d)
	})
	require.NoError(t, err)

	return res, emitted
}

// streamedText joins the text deltas the consumer saw, markers included.
func streamedText(deltas []decode.Delta) string {
	var sb strings.Builder
	for _, d := range deltas {
		if d.Kind == decode.KindText {
			sb.WriteString(d.Text)
		}
	}
	return sb.String()
}

func countMarker(deltas []decode.Delta, marker string) int {
	n := 0
	for _, d := range deltas {
		if d.Kind == decode.KindText && d.Text == marker {
			n++
		}
	}
	return n
}

func TestDetectDialect(t *testing.T) {
	tests := []struct {
		name    string
		evt     decode.Event
		want    decode.Dialect
		wantOK  bool
	}{
		{
			name:   "responses event name",
			evt:    decode.Event{Type: "response.created", Payload: []byte(`{}`)},
			want:   decode.DialectOutputItem,
			wantOK: true,
		},
		{
			name:   "anthropic event name",
			evt:    decode.Event{Type: "message_start", Payload: []byte(`{}`)},
			want:   decode.DialectBlockIndexed,
			wantOK: true,
		},
		{
			name:   "anthropic type in payload",
			evt:    decode.Event{Payload: []byte(`{"type":"content_block_delta"}`)},
			want:   decode.DialectBlockIndexed,
			wantOK: true,
		},
		{
			name:   "chat chunk",
			evt:    decode.Event{Payload: []byte(`{"choices":[{"delta":{"content":"hi"}}]}`)},
			want:   decode.DialectDeltaChoice,
			wantOK: true,
		},
		{
			name:   "unknown",
			evt:    decode.Event{Payload: []byte(`{"foo":1}`)},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := decode.DetectDialect(tt.evt)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNewDecoder(t *testing.T) {
	for _, dialect := range []decode.Dialect{
		decode.DialectBlockIndexed,
		decode.DialectDeltaChoice,
		decode.DialectOutputItem,
	} {
		dec, err := decode.NewDecoder(dialect)
		require.NoError(t, err)
		assert.NotNil(t, dec)
	}

	_, err := decode.NewDecoder(decode.Dialect("bogus"))
	assert.Error(t, err)
}

func TestRun_SourceErrorAborts(t *testing.T) {
	src := testutil.NewSliceSource(
		decode.Event{Type: "message_start", Payload: []byte(`{}`)},
	)
	src.Err = core.NewTransportError(503, "upstream unavailable", nil)

	_, err := decode.Run(src, decode.NewAnthropicDecoder(), decode.NewAccumulator(), nil)
	require.Error(t, err)

	var terr *core.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 503, terr.Status)
}

func TestRun_NilEmitHandler(t *testing.T) {
	src := testutil.NewStreamBuilder().
		Event("content_block_start", `{"index":0,"content_block":{"type":"text"}}`).
		Event("content_block_delta", `{"index":0,"delta":{"type":"text_delta","text":"hello"}}`).
		Source()

	res, err := decode.Run(src, decode.NewAnthropicDecoder(), decode.NewAccumulator(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
}
