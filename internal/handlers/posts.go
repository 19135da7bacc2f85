package handlers

import (
	"errors"
	"strings"

	"github.com/garagehub/backend/internal/middleware"
	"github.com/garagehub/backend/internal/models"
	"github.com/garagehub/backend/internal/services"
	"github.com/garagehub/backend/pkg/logger"
	"github.com/garagehub/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxPostLength = 5000

type PostsHandler struct {
	DB    *gorm.DB
	Audit *services.AuditService
}

func NewPostsHandler(db *gorm.DB, audit *services.AuditService) *PostsHandler {
	return &PostsHandler{DB: db, Audit: audit}
}

// List returns the public feed, newest posts first, comment counts included.
func (h *PostsHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	var total int64
	if err := h.DB.Model(&models.Post{}).Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting posts")
	}

	var posts []models.Post
	err := utils.ApplyPagination(h.DB.Preload("Author").Order("created_at DESC"), p).Find(&posts).Error
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing posts")
	}

	counts := make(map[uuid.UUID]int64, len(posts))
	if len(posts) > 0 {
		ids := make([]uuid.UUID, 0, len(posts))
		for i := range posts {
			ids = append(ids, posts[i].ID)
		}
		var rows []struct {
			PostID uuid.UUID
			Total  int64
		}
		err := h.DB.Model(&models.Comment{}).
			Select("post_id, COUNT(*) AS total").
			Where("post_id IN ?", ids).
			Group("post_id").
			Scan(&rows).Error
		if err != nil {
			return utils.Error(c, fiber.StatusInternalServerError, "failed counting comments")
		}
		for _, row := range rows {
			counts[row.PostID] = row.Total
		}
	}

	out := make([]fiber.Map, 0, len(posts))
	for i := range posts {
		out = append(out, fiber.Map{
			"id":           posts[i].ID,
			"content":      posts[i].Content,
			"createdAt":    posts[i].CreatedAt,
			"author":       publicAuthor(&posts[i].Author),
			"commentCount": counts[posts[i].ID],
		})
	}

	return utils.Paginated(c, out, p.Page, p.Limit, total)
}

func publicAuthor(u *models.User) fiber.Map {
	return fiber.Map{
		"id":         u.ID,
		"username":   u.Username,
		"avatarPath": u.AvatarPath,
	}
}

// Get returns a post with its full comment thread, oldest comment first.
func (h *PostsHandler) Get(c *fiber.Ctx) error {
	postID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid post id")
	}

	var post models.Post
	err = h.DB.Preload("Author").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Comments.Author").
		First(&post, "id = ?", postID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "post not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching post")
	}

	comments := make([]fiber.Map, 0, len(post.Comments))
	for i := range post.Comments {
		comments = append(comments, fiber.Map{
			"id":        post.Comments[i].ID,
			"content":   post.Comments[i].Content,
			"createdAt": post.Comments[i].CreatedAt,
			"author":    publicAuthor(&post.Comments[i].Author),
		})
	}

	canComment := false
	if user := middleware.GetCurrentUser(c); user != nil {
		canComment = post.CanComment(user)
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"id":         post.ID,
		"content":    post.Content,
		"createdAt":  post.CreatedAt,
		"author":     publicAuthor(&post.Author),
		"comments":   comments,
		"canComment": canComment,
	})
}

type postContentRequest struct {
	Content string `json:"content"`
}

func (h *PostsHandler) Create(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	var req postContentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return utils.Error(c, fiber.StatusBadRequest, "content is required")
	}
	if len(content) > maxPostLength {
		return utils.Error(c, fiber.StatusBadRequest, "content is too long")
	}

	post := models.Post{Content: content, AuthorID: user.ID}
	if err := h.DB.Create(&post).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating post")
	}

	h.Audit.LogAsync(auditFor(c, user, "post_created", models.AuditResourcePost, &post.ID, nil))

	post.Author = *user
	return utils.Success(c, fiber.StatusCreated, post)
}

// CreateComment adds a comment to a post. Only the post's author and
// mechanics may comment; everyone else gets a 403 and no row is written.
func (h *PostsHandler) CreateComment(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)

	postID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid post id")
	}

	var post models.Post
	if err := h.DB.First(&post, "id = ?", postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "post not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching post")
	}

	if !post.CanComment(user) {
		logger.Warn("comment_denied", map[string]interface{}{
			"user_id": user.ID.String(),
			"post_id": post.ID.String(),
		})
		return utils.Error(c, fiber.StatusForbidden, "only the post author or a mechanic can comment")
	}

	var req postContentRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return utils.Error(c, fiber.StatusBadRequest, "content is required")
	}
	if len(content) > maxPostLength {
		return utils.Error(c, fiber.StatusBadRequest, "content is too long")
	}

	comment := models.Comment{Content: content, AuthorID: user.ID, PostID: post.ID}
	if err := h.DB.Create(&comment).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating comment")
	}

	h.Audit.LogAsync(auditFor(c, user, "comment_created", models.AuditResourceComment, &comment.ID, map[string]interface{}{
		"post_id": post.ID.String(),
	}))

	comment.Author = *user
	return utils.Success(c, fiber.StatusCreated, comment)
}
