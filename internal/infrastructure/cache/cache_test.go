package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodledger/internal/core/id"
)

type item struct{ name string }

type countingGetter struct {
	calls int
	items map[id.ID]*item
}

var errMissing = errors.New("missing")

func (g *countingGetter) GetByID(_ context.Context, itemID id.ID) (*item, error) {
	g.calls++
	it, ok := g.items[itemID]
	if !ok {
		return nil, errMissing
	}
	return it, nil
}

func TestCatalog_CachesHitsOnly(t *testing.T) {
	ctx := context.Background()
	known, unknown := id.New(), id.New()
	src := &countingGetter{items: map[id.ID]*item{known: {name: "L01"}}}
	c := NewCatalog[*item](src)

	got, err := c.GetByID(ctx, known)
	require.NoError(t, err)
	assert.Equal(t, "L01", got.name)

	_, err = c.GetByID(ctx, known)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	_, err = c.GetByID(ctx, unknown)
	assert.ErrorIs(t, err, errMissing)
	_, err = c.GetByID(ctx, unknown)
	assert.ErrorIs(t, err, errMissing)
	assert.Equal(t, 3, src.calls)

	assert.Equal(t, Stats{Size: 1, Hits: 1, Misses: 3}, c.Stats())
}

func TestCatalog_Invalidate(t *testing.T) {
	ctx := context.Background()
	itemID := id.New()
	src := &countingGetter{items: map[id.ID]*item{itemID: {name: "old"}}}
	c := NewCatalog[*item](src)

	_, err := c.GetByID(ctx, itemID)
	require.NoError(t, err)

	src.items[itemID] = &item{name: "new"}
	c.Invalidate()

	got, err := c.GetByID(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.name)
	assert.Equal(t, 2, src.calls)
}

func TestListener_DispatchRoutesByPayload(t *testing.T) {
	l := NewListener(nil)

	var lines, styles []string
	l.On("line", func(p string) { lines = append(lines, p) })
	l.On("style", func(p string) { styles = append(styles, p) })
	l.On("style", func(string) { panic("boom") })

	l.dispatch("line")
	l.dispatch(" style ")
	l.dispatch("")
	l.dispatch("unknown")

	assert.Equal(t, []string{"line", ""}, lines)
	assert.Equal(t, []string{"style", ""}, styles)
}

func TestListener_StopWithoutStart(t *testing.T) {
	l := NewListener(nil)
	assert.NotPanics(t, l.Stop)
}
