package router

import (
	"net/http"
	"time"

	"circle/internal/handlers"
	"circle/internal/metrics"
	"circle/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// Handlers 路由依赖，由 main 组装
type Handlers struct {
	Auth          *handlers.AuthHandler
	Users         *handlers.UserHandler
	Posts         *handlers.PostHandler
	Comments      *handlers.CommentHandler
	Likes         *handlers.LikeHandler
	Bookmarks     *handlers.BookmarkHandler
	Follows       *handlers.FollowHandler
	Notifications *handlers.NotificationHandler
	Chat          *handlers.ChatHandler
	Settings      *handlers.SettingsHandler

	Realtime    http.Handler
	Health      gin.HandlerFunc
	Tokens      middleware.TokenParser
	AuthLimiter *middleware.RateLimiter
}

// RefreshCookie 刷新令牌 cookie 的属性，只发往 /api/v1/auth
func RefreshCookie(secure bool, ttl time.Duration) sessions.Options {
	return sessions.Options{
		Path:     handlers.RefreshCookiePath,
		MaxAge:   int(ttl.Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// SessionStore 签名的 cookie store，刷新令牌是唯一的会话数据
func SessionStore(secret string, opts sessions.Options) sessions.Store {
	store := cookie.NewStore([]byte(secret))
	store.Options(opts)
	return store
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	handlers.UseJSONFieldNames()

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	// 实时通道在连接建立后用 register 消息鉴权
	r.GET("/ws", gin.WrapH(h.Realtime))

	api := r.Group("/api/v1")

	// 认证 (Auth)：不解析 Bearer，过期的访问令牌不能挡住刷新和退出
	auth := api.Group("/auth")
	{
		limited := auth.Group("")
		if h.AuthLimiter != nil {
			limited.Use(h.AuthLimiter.Handler())
		}
		limited.POST("/signup", h.Auth.Signup)   // 注册
		limited.POST("/login", h.Auth.Login)     // 登录
		limited.POST("/refresh", h.Auth.Refresh) // 轮换刷新令牌
		auth.POST("/logout", h.Auth.Logout)      // 退出登录
		auth.GET("/me", middleware.LoadUser(h.Tokens), middleware.AuthRequired(), h.Auth.Me)
	}

	authed := api.Group("")
	authed.Use(middleware.LoadUser(h.Tokens))

	// 公开路由，登录可选 (Public Routes)
	authed.GET("/users/:username", h.Users.Profile)               // 用户主页
	authed.GET("/users/:username/posts", h.Posts.ListByUser)      // 用户帖子
	authed.GET("/users/:username/followers", h.Follows.Followers) // 粉丝列表
	authed.GET("/users/:username/following", h.Follows.Following) // 关注列表
	authed.GET("/posts/explore", h.Posts.Explore)                 // 发现页
	authed.GET("/posts/:pid", h.Posts.Get)                        // 帖子详情
	authed.GET("/posts/:pid/comments", h.Comments.List)           // 一级评论
	authed.GET("/posts/:pid/likes", h.Likes.Likers)               // 点赞用户
	authed.GET("/comments/:cid/replies", h.Comments.Replies)      // 回复列表

	// 受保护路由 (Protected Routes)
	authorized := authed.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/users/search", h.Users.Search)
		authorized.GET("/users/suggestions", h.Users.Suggestions)
		authorized.PUT("/profile", h.Users.UpdateProfile)
		authorized.PUT("/profile/avatar", h.Users.UpdateAvatar)

		authorized.POST("/posts", h.Posts.Create)
		authorized.GET("/posts/feed", h.Posts.Feed)
		authorized.PUT("/posts/:pid", h.Posts.Update)
		authorized.DELETE("/posts/:pid", h.Posts.Delete)
		authorized.POST("/posts/:pid/comments", h.Comments.Create)
		authorized.PUT("/comments/:cid", h.Comments.Update)
		authorized.DELETE("/comments/:cid", h.Comments.Delete)

		authorized.POST("/posts/:pid/like", h.Likes.LikePost)
		authorized.DELETE("/posts/:pid/like", h.Likes.UnlikePost)
		authorized.POST("/comments/:cid/like", h.Likes.LikeComment)
		authorized.DELETE("/comments/:cid/like", h.Likes.UnlikeComment)

		authorized.POST("/posts/:pid/bookmark", h.Bookmarks.Toggle) // 收藏/取消收藏
		authorized.GET("/bookmarks", h.Bookmarks.List)

		authorized.POST("/users/:username/follow", h.Follows.Follow)
		authorized.DELETE("/users/:username/follow", h.Follows.Unfollow)         // 取关或撤回申请
		authorized.DELETE("/users/:username/follower", h.Follows.RemoveFollower)
		authorized.GET("/follow-requests", h.Follows.Requests)
		authorized.POST("/follow-requests/:id/accept", h.Follows.Accept)
		authorized.POST("/follow-requests/:id/reject", h.Follows.Reject)

		authorized.GET("/notifications", h.Notifications.List)
		authorized.GET("/notifications/unread-count", h.Notifications.UnreadCount)
		authorized.POST("/notifications/:id/read", h.Notifications.Read)
		authorized.POST("/notifications/read-all", h.Notifications.ReadAll)
		authorized.DELETE("/notifications/:id", h.Notifications.Delete)
		authorized.DELETE("/notifications", h.Notifications.DeleteAll)

		authorized.POST("/conversations", h.Chat.Open)
		authorized.GET("/conversations", h.Chat.List)
		authorized.GET("/conversations/:id/messages", h.Chat.Messages)
		authorized.POST("/conversations/:id/messages", h.Chat.Send)
		authorized.POST("/conversations/:id/read", h.Chat.Read)

		authorized.GET("/settings", h.Settings.Get)
		authorized.PUT("/settings", h.Settings.Update)
		authorized.PUT("/settings/password", h.Settings.ChangePassword)
		authorized.DELETE("/settings/account", h.Settings.DeleteAccount)
		authorized.POST("/subscriptions", h.Settings.Subscribe)
		authorized.DELETE("/subscriptions", h.Settings.Unsubscribe)
	}
}
