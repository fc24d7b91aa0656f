package content

import (
	"context"

	"gofolio/internal/model"
	"gofolio/internal/notify"
)

// Collections.
const (
	CollectionProjects   = "projects"
	CollectionBlogPosts  = "blogPosts"
	CollectionOtherWorks = "otherWorks"
	CollectionVideos     = "contents"
	CollectionMessages   = "messages"
	CollectionMeetings   = "meetings"
)

// Change categories.
const (
	CategoryProject   notify.Category = "project"
	CategoryBlog      notify.Category = "blog"
	CategoryOtherWork notify.Category = "other_work"
	CategoryVideo     notify.Category = "video"
	CategoryMessage   notify.Category = "message"
	CategoryMeeting   notify.Category = "meeting"
)

// ContentRepository is the repository shape shared by the four content kinds.
type ContentRepository = Repository[model.ContentItem]

// Kind pairs a content repository with its URL slug.
type Kind struct {
	Slug string
	Repo *ContentRepository
}

// Catalog holds one repository per record type.
type Catalog struct {
	Projects   *ContentRepository
	BlogPosts  *ContentRepository
	OtherWorks *ContentRepository
	Videos     *ContentRepository
	Messages   *Repository[model.Message]
	Meetings   *Repository[model.Meeting]

	kinds []Kind
}

// NewCatalog builds every repository over the same dependencies.
func NewCatalog(deps Deps) *Catalog {
	c := &Catalog{
		Projects:   NewRepository[model.ContentItem](deps, CollectionProjects, CategoryProject),
		BlogPosts:  NewRepository[model.ContentItem](deps, CollectionBlogPosts, CategoryBlog),
		OtherWorks: NewRepository[model.ContentItem](deps, CollectionOtherWorks, CategoryOtherWork),
		Videos:     NewRepository[model.ContentItem](deps, CollectionVideos, CategoryVideo),
		Messages:   NewRepository[model.Message](deps, CollectionMessages, CategoryMessage),
		Meetings:   NewRepository[model.Meeting](deps, CollectionMeetings, CategoryMeeting),
	}
	c.kinds = []Kind{
		{Slug: "projects", Repo: c.Projects},
		{Slug: "blog", Repo: c.BlogPosts},
		{Slug: "other-works", Repo: c.OtherWorks},
		{Slug: "videos", Repo: c.Videos},
	}
	return c
}

// Kinds returns the content kinds in display order.
func (c *Catalog) Kinds() []Kind {
	return c.kinds
}

// Content returns the content repository for a URL slug.
func (c *Catalog) Content(slug string) (*ContentRepository, bool) {
	for _, k := range c.kinds {
		if k.Slug == slug {
			return k.Repo, true
		}
	}
	return nil, false
}

// Categories returns every category the catalog signals.
func (c *Catalog) Categories() []notify.Category {
	return []notify.Category{
		CategoryProject, CategoryBlog, CategoryOtherWork,
		CategoryVideo, CategoryMessage, CategoryMeeting,
	}
}

// KindStats counts the records of one content kind.
type KindStats struct {
	Total     int `json:"total"`
	Published int `json:"published"`
	Featured  int `json:"featured"`
}

// InboxStats counts messages or meetings.
type InboxStats struct {
	Total   int `json:"total"`
	Unread  int `json:"unread,omitempty"`
	Pending int `json:"pending,omitempty"`
}

// Stats are the admin dashboard counters.
type Stats struct {
	Content  map[string]KindStats `json:"content"`
	Messages InboxStats           `json:"messages"`
	Meetings InboxStats           `json:"meetings"`
}

// Stats counts records across the catalog. The first store failure aborts.
func (c *Catalog) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Content: make(map[string]KindStats, len(c.kinds))}

	for _, k := range c.kinds {
		items, err := k.Repo.List(ctx)
		if err != nil {
			return nil, err
		}
		var ks KindStats
		for _, item := range items {
			ks.Total++
			if item.IsPublished() {
				ks.Published++
			}
			if item.Featured {
				ks.Featured++
			}
		}
		stats.Content[k.Slug] = ks
	}

	messages, err := c.Messages.List(ctx)
	if err != nil {
		return nil, err
	}
	stats.Messages.Total = len(messages)
	for _, m := range messages {
		if !m.Read {
			stats.Messages.Unread++
		}
	}

	meetings, err := c.Meetings.List(ctx)
	if err != nil {
		return nil, err
	}
	stats.Meetings.Total = len(meetings)
	for _, m := range meetings {
		if m.Status == model.MeetingPending {
			stats.Meetings.Pending++
		}
	}

	return stats, nil
}
