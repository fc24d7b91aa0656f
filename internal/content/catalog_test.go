package content_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofolio/internal/content"
	"gofolio/internal/model"
)

func TestCatalog_Wiring(t *testing.T) {
	c := newFixture(t).catalog

	testCases := []struct {
		name       string
		repo       interface{ Collection() string }
		collection string
	}{
		{"projects", c.Projects, "projects"},
		{"blog posts", c.BlogPosts, "blogPosts"},
		{"other works", c.OtherWorks, "otherWorks"},
		{"videos", c.Videos, "contents"},
		{"messages", c.Messages, "messages"},
		{"meetings", c.Meetings, "meetings"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.collection, tc.repo.Collection())
		})
	}

	assert.Equal(t, content.CategoryProject, c.Projects.Category())
	assert.Equal(t, content.CategoryBlog, c.BlogPosts.Category())
	assert.Equal(t, content.CategoryOtherWork, c.OtherWorks.Category())
	assert.Equal(t, content.CategoryVideo, c.Videos.Category())
	assert.Equal(t, content.CategoryMessage, c.Messages.Category())
	assert.Equal(t, content.CategoryMeeting, c.Meetings.Category())
	assert.Len(t, c.Categories(), 6)
}

func TestCatalog_Content(t *testing.T) {
	c := newFixture(t).catalog

	repo, ok := c.Content("other-works")
	require.True(t, ok)
	assert.Same(t, c.OtherWorks, repo)

	repo, ok = c.Content("blog")
	require.True(t, ok)
	assert.Same(t, c.BlogPosts, repo)

	_, ok = c.Content("messages")
	assert.False(t, ok)

	slugs := make([]string, 0, 4)
	for _, k := range c.Kinds() {
		slugs = append(slugs, k.Slug)
	}
	assert.Equal(t, []string{"projects", "blog", "other-works", "videos"}, slugs)
}

func TestCatalog_Stats(t *testing.T) {
	f := newFixture(t)
	c := f.catalog
	ctx := context.Background()

	published := sampleProject()
	published.Status = model.StatusPublished
	_, err := c.Projects.Create(ctx, published)
	require.NoError(t, err)
	_, err = c.Projects.Create(ctx, sampleProject())
	require.NoError(t, err)

	read, err := c.Messages.Create(ctx, model.Message{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = c.Messages.Update(ctx, read.ID, model.MessagePatch{Read: ptr(true)})
	require.NoError(t, err)
	_, err = c.Messages.Create(ctx, model.Message{Name: "B", Email: "b@example.com"})
	require.NoError(t, err)

	_, err = c.Meetings.Create(ctx, model.Meeting{Name: "C", Status: model.MeetingPending})
	require.NoError(t, err)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, content.KindStats{Total: 2, Published: 1, Featured: 2}, stats.Content["projects"])
	assert.Equal(t, content.KindStats{}, stats.Content["videos"])
	assert.Equal(t, content.InboxStats{Total: 2, Unread: 1}, stats.Messages)
	assert.Equal(t, content.InboxStats{Total: 1, Pending: 1}, stats.Meetings)

	f.store.SetOffline(true)
	_, err = c.Stats(ctx)
	assert.ErrorIs(t, err, content.ErrStoreUnavailable)
}

func TestValidationError(t *testing.T) {
	err := content.ValidationError("email", "is required")
	assert.ErrorIs(t, err, content.ErrValidationFailed)
	assert.Contains(t, err.Error(), "email is required")
}
