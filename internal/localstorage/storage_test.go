package localstorage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage interprets the adapter's scripts against an ordered map
type fakePage struct {
	keys  []string
	items map[string]string
	calls int
	err   error
}

func newFakePage() *fakePage {
	return &fakePage{items: map[string]string{}}
}

func (p *fakePage) Eval(ctx context.Context, out any, js string, args ...any) error {
	p.calls++
	if p.err != nil {
		return p.err
	}

	var result any
	switch js {
	case scriptLen:
		result = len(p.keys)
	case scriptItems:
		m := map[string]string{}
		for _, k := range p.keys {
			m[k] = p.items[k]
		}
		result = m
	case scriptKeys:
		result = append([]string{}, p.keys...)
	case scriptGet:
		if v, ok := p.items[args[0].(string)]; ok {
			result = v
		}
	case scriptSet:
		k, v := args[0].(string), args[1].(string)
		if _, ok := p.items[k]; !ok {
			p.keys = append(p.keys, k)
		}
		p.items[k] = v
	case scriptRemove:
		k := args[0].(string)
		delete(p.items, k)
		for i, key := range p.keys {
			if key == k {
				p.keys = append(p.keys[:i], p.keys[i+1:]...)
				break
			}
		}
	case scriptClear:
		p.keys = nil
		p.items = map[string]string{}
	default:
		return fmt.Errorf("unexpected script %q", js)
	}

	if out == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func TestStorage_SetGetRemove(t *testing.T) {
	page := newFakePage()
	ls := New(page)
	ctx := context.Background()

	n, err := ls.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, ls.Set(ctx, "token", "abc"))
	require.NoError(t, ls.Set(ctx, "theme", "dark"))
	require.NoError(t, ls.Set(ctx, "token", "def"))

	n, err = ls.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, ok, err := ls.Get(ctx, "token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "def", v)

	keys, err := ls.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"token", "theme"}, keys)

	has, err := ls.Has(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, ls.Remove(ctx, "theme"))
	has, err = ls.Has(ctx, "theme")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestStorage_MissingKey(t *testing.T) {
	ls := New(newFakePage())
	ctx := context.Background()

	v, ok, err := ls.Get(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, v)

	_, err = ls.Value(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorage_EmptyStringIsPresent(t *testing.T) {
	ls := New(newFakePage())
	ctx := context.Background()
	require.NoError(t, ls.Set(ctx, "blank", ""))

	v, err := ls.Value(ctx, "blank")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestStorage_ItemsRangeClear(t *testing.T) {
	page := newFakePage()
	ls := New(page)
	ctx := context.Background()

	for k, v := range map[string]string{"b": "2", "a": "1", "c": "3"} {
		require.NoError(t, ls.Set(ctx, k, v))
	}

	items, err := ls.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}, items)

	var seen []string
	require.NoError(t, ls.Range(ctx, func(k, v string) bool {
		seen = append(seen, k+"="+v)
		return k != "b"
	}))
	assert.Equal(t, []string{"a=1", "b=2"}, seen)

	assert.Equal(t, `localStorage{"a": "1", "b": "2", "c": "3"}`, ls.Dump(ctx))

	require.NoError(t, ls.Clear(ctx))
	n, err := ls.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStorage_NoCaching(t *testing.T) {
	page := newFakePage()
	ls := New(page)
	ctx := context.Background()

	_, _ = ls.Len(ctx)
	_, _ = ls.Len(ctx)
	assert.Equal(t, 2, page.calls)
}

func TestStorage_EvalError(t *testing.T) {
	page := newFakePage()
	page.err = errors.New("target closed")
	ls := New(page)
	ctx := context.Background()

	_, err := ls.Items(ctx)
	assert.ErrorIs(t, err, page.err)

	_, err = ls.Has(ctx, "x")
	assert.ErrorIs(t, err, page.err)

	err = ls.Set(ctx, "x", "y")
	assert.ErrorIs(t, err, page.err)
	assert.Contains(t, err.Error(), "failed to set localStorage")

	assert.Contains(t, ls.Dump(ctx), "target closed")
}
