package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"cf-quiz-service/internal/app"
	"cf-quiz-service/internal/domain"
	"cf-quiz-service/internal/report"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the interactive socket and the read-only history API.
func NewRouter(service *app.QuizService) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), cors.Default())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/ws", gin.WrapF(NewWSHandler(service).ServeWS))

	history := &historyHandler{service: service}
	api := router.Group("/api")
	api.GET("/history/:email", history.list)
	api.GET("/history/:email/:n/report.pdf", history.pdf)
	api.GET("/history/:email/:n/report.txt", history.text)
	return router
}

type historyHandler struct {
	service *app.QuizService
}

func (h *historyHandler) list(c *gin.Context) {
	identity := domain.NormalizeIdentity(c.Param("email"))
	c.JSON(http.StatusOK, gin.H{
		"identity": identity,
		"attempts": h.service.History(c.Request.Context(), identity),
	})
}

func (h *historyHandler) pdf(c *gin.Context) {
	identity, doc, ok := h.document(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WritePDF(&buf, doc); err != nil {
		c.JSON(http.StatusInternalServerError, errorPayload{Message: err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="quiz-report-%s.pdf"`, identity))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

func (h *historyHandler) text(c *gin.Context) {
	_, doc, ok := h.document(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := report.WriteText(&buf, doc); err != nil {
		c.JSON(http.StatusInternalServerError, errorPayload{Message: err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}

// document resolves :email and :n into a report document, writing the error response itself.
func (h *historyHandler) document(c *gin.Context) (string, report.Document, bool) {
	identity := domain.NormalizeIdentity(c.Param("email"))
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorPayload{Message: "attempt index must be an integer"})
		return "", report.Document{}, false
	}
	attempt, err := h.service.Attempt(c.Request.Context(), identity, n)
	if errors.Is(err, domain.ErrAttemptNotFound) {
		c.JSON(http.StatusNotFound, errorPayload{Message: err.Error()})
		return "", report.Document{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorPayload{Message: err.Error()})
		return "", report.Document{}, false
	}
	return identity, report.Build(identity, attempt), true
}
