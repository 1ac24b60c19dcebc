package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointWebSocketURL(t *testing.T) {
	ep := Endpoint{Host: "grid-chrome.local", Port: 9222}
	assert.Equal(t, "ws://grid-chrome.local:9222", ep.WebSocketURL())
	assert.Equal(t, "grid-chrome.local:9222", ep.String())
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{}.withDefaults()
	assert.Equal(t, 30*time.Second, opts.CommandTimeout)
	assert.Equal(t, 500*time.Millisecond, opts.PollInterval)

	opts = Options{CommandTimeout: time.Second, PollInterval: 10 * time.Millisecond}.withDefaults()
	assert.Equal(t, time.Second, opts.CommandTimeout)
	assert.Equal(t, 10*time.Millisecond, opts.PollInterval)
}

func TestSessionMarkClosedIdempotent(t *testing.T) {
	sess := &Session{ctx: context.Background()}

	assert.True(t, sess.markClosed(), "first close wins")
	assert.False(t, sess.markClosed(), "second close is a no-op")
	assert.False(t, sess.markClosed())
}

func TestSessionOpContextAfterClose(t *testing.T) {
	sess := &Session{ctx: context.Background()}

	opCtx, cancel, err := sess.opContext(time.Second)
	require.NoError(t, err)
	require.NotNil(t, opCtx)
	cancel()

	sess.markClosed()
	_, _, err = sess.opContext(time.Second)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSessionReleaseCancelsContexts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{ctx: ctx, cancels: []context.CancelFunc{cancel}}

	sess.release()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestRemoteCommandsRejectClosedSession(t *testing.T) {
	r := NewRemote(Options{CommandTimeout: time.Second, PollInterval: time.Millisecond})
	sess := &Session{ctx: context.Background()}
	sess.markClosed()

	ctx := context.Background()
	assert.ErrorIs(t, r.Navigate(ctx, sess, "https://example.com"), ErrSessionClosed)
	assert.ErrorIs(t, r.SetField(ctx, sess, "input#x", "y"), ErrSessionClosed)
	assert.ErrorIs(t, r.Click(ctx, sess, "button#x"), ErrSessionClosed)
	_, err := r.PageSource(ctx, sess)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestRemoteWaitForTimesOutOnClosedSession(t *testing.T) {
	r := NewRemote(Options{CommandTimeout: time.Second, PollInterval: time.Millisecond})
	sess := &Session{ctx: context.Background()}
	sess.markClosed()

	err := r.WaitFor(context.Background(), sess, func(string) bool { return true }, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrWaitTimeout)
}

func TestRemoteCloseNilAndDoubleClose(t *testing.T) {
	r := NewRemote(Options{})

	r.Close(nil)

	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{ctx: ctx, cancels: []context.CancelFunc{cancel}}
	r.Close(sess)
	r.Close(sess)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
