package rpc

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/lifecycle/errors"
	"github.com/kbukum/lifecycle/server"
	"github.com/kbukum/lifecycle/validation"
)

// Request is the body of POST /rpc.
type Request struct {
	ID     string          `json:"id,omitempty" validate:"omitempty,max=128"`
	Method string          `json:"method" validate:"required,max=256"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the data of a successful POST /rpc.
type Response struct {
	ID     string `json:"id,omitempty"`
	Method string `json:"method"`
	Result any    `json:"result"`
}

// Mount adds POST /rpc (call) and GET /rpc (list methods) to r.
func (s *Server) Mount(r gin.IRouter) {
	r.POST("/rpc", s.handleCall)
	r.GET("/rpc", s.handleList)
}

func (s *Server) handleCall(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, errors.InvalidInput("body", err.Error()))
		return
	}
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	result, err := s.Call(c.Request.Context(), req.Method, req.Params)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, Response{ID: req.ID, Method: req.Method, Result: result})
}

func (s *Server) handleList(c *gin.Context) {
	server.RespondOK(c, gin.H{
		"running": s.Running(),
		"methods": s.Methods(),
	})
}
