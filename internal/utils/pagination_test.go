package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPage(t *testing.T) {
	p := NewPage("3", "10")
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 20, p.Offset())

	p = NewPage("", "")
	assert.Equal(t, Page{Page: 1, Limit: DefaultLimit}, p)

	p = NewPage("-1", "500")
	assert.Equal(t, Page{Page: 1, Limit: MaxLimit}, p)
}

func TestNewOffsetPage(t *testing.T) {
	p := Page{Page: 1, Limit: 2}

	got := NewOffsetPage([]int{1, 2, 3}, p)
	assert.Equal(t, []int{1, 2}, got.Items)
	assert.True(t, got.HasMore)

	got = NewOffsetPage[int](nil, p)
	assert.NotNil(t, got.Items)
	assert.False(t, got.HasMore)
}

func TestCursor_RoundTrip(t *testing.T) {
	c := Cursor{CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC), ID: 77}

	got, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, uint(77), got.ID)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	got, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, got)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)

	_, err = DecodeCursor(Cursor{}.Encode()[:4])
	assert.Error(t, err)
}

func TestNewCursorPage(t *testing.T) {
	type row struct{ id uint }
	key := func(r row) Cursor { return Cursor{ID: r.id} }

	page := NewCursorPage([]row{{3}, {2}, {1}}, 2, key)
	assert.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	next, err := DecodeCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next.ID)

	page = NewCursorPage([]row{{1}}, 2, key)
	assert.Empty(t, page.NextCursor)
}
