package httpserver

import "github.com/labstack/echo/v4"

func Register(g *echo.Group, h *AuthHTTP) {
	auth := g.Group("/auth")
	auth.POST("/register", h.Register)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.LogOut)
}
