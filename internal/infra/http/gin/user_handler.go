package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"devrim/internal/app/dto"
	usersapp "devrim/internal/app/handlers/users"
	"devrim/internal/app/queries"
)

type UserHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h UserHandler) Search(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	q := usersapp.SearchUsersQuery{ActorID: p.ID, Search: c.Query("search"), Limit: limit}
	list, err := queries.Ask[usersapp.SearchUsersQuery, dto.UserList](c.Request.Context(), h.Queries, q)
	if err != nil {
		respondError(c, h.Logger, err, "search users", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h UserHandler) Me(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	u, err := queries.Ask[usersapp.CurrentUserQuery, dto.User](c.Request.Context(), h.Queries, usersapp.CurrentUserQuery{ActorID: p.ID})
	if err != nil {
		respondError(c, h.Logger, err, "current user", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, u)
}

var _ UserHTTP = UserHandler{}
