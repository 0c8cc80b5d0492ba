package server

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxReplacesPendingCounterText(t *testing.T) {
	out := newOutbox()
	view := commandView{out: out}

	view.SetText("clients", "0")
	view.SetText("members", "0")
	view.SetText("clients", "937")
	view.SetClass("luxury-nav", "nav-scrolled", true)
	view.SetText("clients", "2,500")

	frames, dropped := out.drain()
	assert.Zero(t, dropped)
	require.Len(t, frames, 3)
	assert.Equal(t, map[string]any{"element": "members", "text": "0"}, frames[0].Data)
	assert.Equal(t, "setClass", frames[1].Op)
	assert.Equal(t, map[string]any{"element": "clients", "text": "2,500"}, frames[2].Data)
}

func TestOutboxKeepsViewFramesBeforeTheirReply(t *testing.T) {
	out := newOutbox()
	view := commandView{out: out}

	view.SetText("clients", "0")
	out.push(Frame{Type: "result", ID: "1", Op: "visibility"})
	view.SetText("clients", "937")

	frames, _ := out.drain()
	require.Len(t, frames, 3)
	assert.Equal(t, "0", frames[0].Data.(map[string]any)["text"])
	assert.Equal(t, "result", frames[1].Type)
	assert.Equal(t, "937", frames[2].Data.(map[string]any)["text"])
}

func TestOutboxDropsOldestWhenFull(t *testing.T) {
	out := newOutbox()
	for i := 0; i < maxPendingFrames+10; i++ {
		out.push(Frame{Type: "result", ID: strconv.Itoa(i)})
	}

	frames, dropped := out.drain()
	assert.Equal(t, 10, dropped)
	require.Len(t, frames, maxPendingFrames)
	assert.Equal(t, "10", frames[0].ID)
	assert.Equal(t, strconv.Itoa(maxPendingFrames+9), frames[len(frames)-1].ID)

	frames, dropped = out.drain()
	assert.Empty(t, frames)
	assert.Zero(t, dropped)
}
