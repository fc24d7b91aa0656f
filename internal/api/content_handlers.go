package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"gofolio/internal/content"
	"gofolio/internal/model"
)

const entityContent = "content item"

type contentRequest struct {
	Title       string       `json:"title"       binding:"required"`
	Description string       `json:"description"`
	Body        string       `json:"body"`
	Category    string       `json:"category"`
	Tags        []string     `json:"tags"`
	Image       string       `json:"image"`
	Link        string       `json:"link"`
	Status      model.Status `json:"status"`
	Featured    bool         `json:"featured"`
}

func (req contentRequest) item() model.ContentItem {
	item := model.ContentItem{
		Title:       req.Title,
		Description: req.Description,
		Body:        req.Body,
		Category:    req.Category,
		Tags:        req.Tags,
		Image:       req.Image,
		Link:        req.Link,
		Status:      req.Status,
		Featured:    req.Featured,
	}
	if item.Status == "" {
		item.Status = model.StatusDraft
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	return item
}

// isEmptyPatch reports whether patch carries no fields.
func isEmptyPatch(patch any) bool {
	data, err := json.Marshal(patch)
	return err == nil && string(data) == "{}"
}

func listKey(f content.Filter) string {
	featured := "any"
	if f.Featured != nil {
		featured = fmt.Sprint(*f.Featured)
	}
	return fmt.Sprintf("featured=%s&limit=%d", featured, f.Limit)
}

// listPublished returns published items of one kind
// GET /api/v1/{kind}?featured=true&limit=N
func (r *Router) listPublished(k content.Kind) gin.HandlerFunc {
	published := r.published[k.Slug]

	return func(c *gin.Context) {
		featured, err := queryBool(c, "featured")
		if err != nil {
			respondError(c, err, entityContent, "list")
			return
		}
		limit, err := queryLimit(c)
		if err != nil {
			respondError(c, err, entityContent, "list")
			return
		}
		f := content.Filter{Status: string(model.StatusPublished), Featured: featured, Limit: limit}

		items, err := published.Get(c.Request.Context(), listKey(f), func(ctx context.Context) ([]model.ContentItem, error) {
			return k.Repo.Find(ctx, f)
		})
		if err != nil {
			respondError(c, err, entityContent, "list")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"items": items,
			"count": len(items),
		})
	}
}

// getPublished returns one published item; drafts are reported as missing
// GET /api/v1/{kind}/:id
func (r *Router) getPublished(k content.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, found, err := k.Repo.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err, entityContent, "get")
			return
		}
		if !found || !item.IsPublished() {
			notFound(c, entityContent)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// listContent returns items of one kind in any status
// GET /api/v1/admin/{kind}?status=&featured=&limit=
func (r *Router) listContent(k content.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f content.Filter
		if raw := c.Query("status"); raw != "" {
			status, err := model.ParseStatus(raw)
			if err != nil {
				respondError(c, content.ValidationError("status", "must be draft or published"), entityContent, "list")
				return
			}
			f.Status = string(status)
		}
		featured, err := queryBool(c, "featured")
		if err != nil {
			respondError(c, err, entityContent, "list")
			return
		}
		f.Featured = featured
		if f.Limit, err = queryLimit(c); err != nil {
			respondError(c, err, entityContent, "list")
			return
		}

		items, err := k.Repo.Find(c.Request.Context(), f)
		if err != nil {
			respondError(c, err, entityContent, "list")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"items": items,
			"count": len(items),
		})
	}
}

// createContent creates an item of one kind
// POST /api/v1/admin/{kind}
func (r *Router) createContent(k content.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req contentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		item, err := k.Repo.Create(c.Request.Context(), req.item())
		if err != nil {
			respondError(c, err, entityContent, "create")
			return
		}

		c.Header("Location", fmt.Sprintf("/api/v1/admin/%s/%s", k.Slug, item.ID))
		c.JSON(http.StatusCreated, item)
	}
}

// getContent returns an item of one kind in any status
// GET /api/v1/admin/{kind}/:id
func (r *Router) getContent(k content.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, found, err := k.Repo.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err, entityContent, "get")
			return
		}
		if !found {
			notFound(c, entityContent)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// updateContent applies a partial update
// PATCH /api/v1/admin/{kind}/:id
func (r *Router) updateContent(k content.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch model.ContentPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			respondBindError(c, err)
			return
		}
		if isEmptyPatch(patch) {
			respondError(c, content.ValidationError("body", "must contain at least one field"), entityContent, "update")
			return
		}

		item, err := k.Repo.Update(c.Request.Context(), c.Param("id"), patch)
		if err != nil {
			respondError(c, err, entityContent, "update")
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// deleteContent removes an item
// DELETE /api/v1/admin/{kind}/:id
func (r *Router) deleteContent(k content.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := k.Repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err, entityContent, "delete")
			return
		}
		c.Status(http.StatusNoContent)
	}
}
